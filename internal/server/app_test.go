package server

import (
	"testing"

	"github.com/dmitrijs2005/mediavault/internal/server/config"
	"github.com/dmitrijs2005/mediavault/internal/server/services"
	"github.com/stretchr/testify/assert"
)

func TestUploadLimits_FromConfig(t *testing.T) {
	c := &config.Config{}
	c.LoadDefaults()
	c.MaxUploadBytes = 100
	c.MaxAvatarUploadBytes = 10

	l := uploadLimits(c)
	assert.Equal(t, int64(100), l.For("lesson"))
	assert.Equal(t, int64(10), l.For("avatar"))
	assert.Equal(t, int64(10), l.For("profile"))
}

func TestUploadLimits_ZeroKeepsDefaults(t *testing.T) {
	l := uploadLimits(&config.Config{})
	assert.Equal(t, int64(10<<20), l.For("lesson"))
	assert.Equal(t, int64(5<<20), l.For("avatar"))
}

func TestMigrationSettings_FromConfig(t *testing.T) {
	c := &config.Config{}
	c.LoadDefaults()

	s := migrationSettings(c)
	assert.Equal(t, 4, s.Workers)
	assert.Equal(t, 3, s.Retries)
	assert.Equal(t, int64(5<<20), s.Throughput)
}

func TestMaxInt64(t *testing.T) {
	assert.Equal(t, int64(5), maxInt64(5, 3))
	assert.Equal(t, int64(5), maxInt64(3, 5))
}

func TestRuntime_CloseNil(t *testing.T) {
	var r *Runtime
	assert.NoError(t, r.Close())
	assert.NoError(t, (&Runtime{}).Close())
}

func TestWatermarker(t *testing.T) {
	c := &config.Config{}
	assert.Nil(t, watermarker(c))

	c.WatermarkImages = true
	assert.Equal(t, services.ViewerStamp{}, watermarker(c))
}
