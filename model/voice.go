package model

import "strings"

// VoiceProfile is one of the supported narration voices.
type VoiceProfile string

const (
	VoiceFemale VoiceProfile = "female"
	VoiceMale   VoiceProfile = "male"
	VoiceJenny  VoiceProfile = "jenny"
	VoiceDavis  VoiceProfile = "davis"

	DefaultVoice = VoiceFemale
)

// VoiceConfig is the synthesizer voice identifier plus rate adjustment.
type VoiceConfig struct {
	Voice string `json:"voice"`
	Rate  string `json:"rate"` // signed percentage, e.g. "+20%"
}

var voiceConfigs = map[VoiceProfile]VoiceConfig{
	VoiceFemale: {Voice: "en-US-AriaNeural", Rate: "+20%"},
	VoiceMale:   {Voice: "en-US-GuyNeural", Rate: "+0%"},
	VoiceJenny:  {Voice: "en-US-JennyNeural", Rate: "+0%"},
	VoiceDavis:  {Voice: "en-US-DavisNeural", Rate: "-10%"},
}

// VoiceProfiles lists the supported profiles in a stable order.
func VoiceProfiles() []VoiceProfile {
	return []VoiceProfile{VoiceFemale, VoiceMale, VoiceJenny, VoiceDavis}
}

// ParseVoiceProfile maps a name to a profile, falling back to DefaultVoice.
func ParseVoiceProfile(name string) VoiceProfile {
	p := VoiceProfile(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := voiceConfigs[p]; ok {
		return p
	}
	return DefaultVoice
}

// Config returns the voice configuration; unknown profiles use the default.
func (p VoiceProfile) Config() VoiceConfig {
	if c, ok := voiceConfigs[p]; ok {
		return c
	}
	return voiceConfigs[DefaultVoice]
}
