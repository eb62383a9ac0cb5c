package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FFMPEG_PATH", "/opt/ff/bin/ffmpeg")
	t.Setenv("WORKER_COUNT", "3")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()

	assert.Equal(t, "/opt/ff/bin/ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "/opt/ff/bin/ffprobe", cfg.FFprobePath)
	assert.Equal(t, 3, cfg.WorkerCount)
	assert.True(t, cfg.MinioUseSSL)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr())
}

func TestProbePathFor(t *testing.T) {
	assert.Equal(t, "ffprobe", probePathFor("ffmpeg"))
	assert.Equal(t, "/usr/bin/ffprobe", probePathFor("/usr/bin/ffmpeg"))
	assert.Equal(t, "/ffmpeg/bin/ffprobe.exe", probePathFor("/ffmpeg/bin/ffmpeg.exe"))
}
