package platform

import (
	"context"
	"fmt"
)

// DeleteResult is the platform's answer to a delete request.
type DeleteResult struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// Messenger is the live messaging platform the bot posts to.
type Messenger interface {
	// DeleteMessage removes a message from a chat. Transport failures are
	// returned as errors; platform rejections come back as OK=false.
	DeleteMessage(ctx context.Context, chatID string, messageID int64) (DeleteResult, error)
	// Name identifies the platform in logs.
	Name() string
}

// Loader creates a Messenger from config.
type Loader func(ctx context.Context) (Messenger, error)

// Plugin represents a messaging platform plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a messaging platform plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered messaging platform plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named messaging platform plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown messaging platform %q; valid: %v", name, Names())
}
