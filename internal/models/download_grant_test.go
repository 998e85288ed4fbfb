package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDownloadGrantRemaining(t *testing.T) {
	assert.Equal(t, 2, DownloadGrant{MaxDownloads: 3, DownloadCount: 1}.Remaining())
	assert.Equal(t, 0, DownloadGrant{MaxDownloads: 3, DownloadCount: 5}.Remaining())
}

func TestDownloadGrantExpiredAt(t *testing.T) {
	now := time.Now()
	g := DownloadGrant{ExpiresAt: now}

	assert.False(t, g.ExpiredAt(now), "the expiry instant is still valid")
	assert.False(t, g.ExpiredAt(now.Add(-time.Second)))
	assert.True(t, g.ExpiredAt(now.Add(time.Nanosecond)))
}
