package localstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Migration upgrades a payload from version N to N+1.
type Migration func(data json.RawMessage) (json.RawMessage, error)

// Codec wraps payloads in a versioned envelope and upgrades older payloads on decode.
// A value written without an envelope is read as version 0.
type Codec struct {
	current    int
	migrations map[int]Migration
}

type envelope struct {
	Version *int            `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// NewCodec returns a codec that writes the given version. Register one
// migration per step between 0 (or the oldest supported version) and current.
func NewCodec(current int) *Codec {
	return &Codec{current: current, migrations: make(map[int]Migration)}
}

// Register adds the migration applied to payloads stored at version from.
func (c *Codec) Register(from int, migration Migration) *Codec {
	c.migrations[from] = migration
	return c
}

// Version is the envelope version written by Encode.
func (c *Codec) Version() int {
	return c.current
}

func (c *Codec) Encode(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	version := c.current
	return json.Marshal(envelope{Version: &version, Data: data})
}

// Decode unwraps raw, runs pending migrations and unmarshals into out.
func (c *Codec) Decode(raw []byte, out any) error {
	data, version, err := unwrap(raw)
	if err != nil {
		return err
	}
	if version > c.current {
		return fmt.Errorf("stored version %d is newer than supported version %d", version, c.current)
	}
	for v := version; v < c.current; v++ {
		migration, ok := c.migrations[v]
		if !ok {
			return fmt.Errorf("no migration registered from version %d", v)
		}
		if data, err = migration(data); err != nil {
			return fmt.Errorf("migrate from version %d: %w", v, err)
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode payload v%d: %w", c.current, err)
	}
	return nil
}

func unwrap(raw []byte) (json.RawMessage, int, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, 0, fmt.Errorf("empty payload")
	}
	if trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err == nil && env.Version != nil && env.Data != nil {
			return env.Data, *env.Version, nil
		}
	}
	return json.RawMessage(trimmed), 0, nil
}
