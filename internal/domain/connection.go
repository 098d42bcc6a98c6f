package domain

import (
	"sort"
	"time"
)

type PlatformConnection struct {
	Connected bool
	// SecretRef points at the credential bundle in the secret store.
	SecretRef   string
	Identifiers map[string]string
	Expiry      *time.Time
	ConnectedAt time.Time
}

// Connections tracks every platform of an account. Platforms mirrors the set
// of entries whose Connected flag is true.
type Connections struct {
	ByPlatform map[Platform]PlatformConnection
	Platforms  []Platform
}

// NewConnections returns an entry per supported platform, all disconnected.
func NewConnections() Connections {
	c := Connections{ByPlatform: make(map[Platform]PlatformConnection, len(platformSpecs))}
	for _, p := range Platforms() {
		c.ByPlatform[p] = PlatformConnection{}
	}
	c.Sync()
	return c
}

func (c Connections) IsConnected(p Platform) bool {
	return c.ByPlatform[p].Connected
}

func (c Connections) Get(p Platform) PlatformConnection {
	return c.ByPlatform[p]
}

// Connect replaces whatever was stored for p.
func (c *Connections) Connect(p Platform, conn PlatformConnection) {
	if c.ByPlatform == nil {
		c.ByPlatform = make(map[Platform]PlatformConnection, len(platformSpecs))
	}
	conn.Connected = true
	c.ByPlatform[p] = conn
	c.Sync()
}

// Disconnect clears every credential field of p. Disconnecting an already
// disconnected platform changes nothing.
func (c *Connections) Disconnect(p Platform) {
	if c.ByPlatform == nil {
		c.ByPlatform = make(map[Platform]PlatformConnection, len(platformSpecs))
	}
	c.ByPlatform[p] = PlatformConnection{}
	c.Sync()
}

// Sync rebuilds Platforms from the per-platform flags.
func (c *Connections) Sync() {
	connected := make([]Platform, 0, len(c.ByPlatform))
	for p, conn := range c.ByPlatform {
		if conn.Connected {
			connected = append(connected, p)
		}
	}
	sort.Slice(connected, func(i, j int) bool {
		return platformIndex(connected[i]) < platformIndex(connected[j])
	})
	c.Platforms = connected
}
