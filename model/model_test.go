package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVoiceProfile(t *testing.T) {
	assert.Equal(t, VoiceMale, ParseVoiceProfile("Male"))
	assert.Equal(t, VoiceDavis, ParseVoiceProfile(" davis "))
	assert.Equal(t, DefaultVoice, ParseVoiceProfile("robot"))
	assert.Equal(t, DefaultVoice, ParseVoiceProfile(""))

	assert.Equal(t, "en-US-AriaNeural", VoiceFemale.Config().Voice)
	assert.Equal(t, "-10%", VoiceDavis.Config().Rate)
	assert.Equal(t, VoiceFemale.Config(), VoiceProfile("unknown").Config())
}

func TestErrorTaxonomy(t *testing.T) {
	toolErr := &ExternalToolError{Tool: "ffmpeg", Err: errors.New("exit status 1"), Diagnostic: "Invalid data found"}
	wrapped := InStage(StageCompose, fmt.Errorf("render: %w", toolErr))

	assert.True(t, errors.Is(wrapped, ErrExternalTool))
	assert.False(t, errors.Is(wrapped, ErrResourceMissing))
	assert.Equal(t, StageCompose, StageOf(wrapped))
	assert.Contains(t, wrapped.Error(), "compose: render: ffmpeg failed: exit status 1: Invalid data found")

	missing := InStage(StageBackground, &ResourceMissingError{Kind: "background clip", Path: "/bg/cats"})
	assert.True(t, errors.Is(missing, ErrResourceMissing))
	assert.Equal(t, "background: background clip not found: /bg/cats", missing.Error())

	// the innermost stage wins
	assert.Equal(t, StageBackground, StageOf(InStage(StageCompose, missing)))
	assert.Nil(t, InStage(StageAlign, nil))

	in := &InputError{Field: "text", Reason: "empty"}
	assert.True(t, errors.Is(in, ErrInput))
}

func TestJobStateTerminal(t *testing.T) {
	assert.True(t, JobCompleted.Terminal())
	assert.True(t, JobFailed.Terminal())
	assert.False(t, JobQueued.Terminal())
	assert.False(t, JobProcessing.Terminal())
}
