package main

import (
	"testing"

	"github.com/justapithecus/ferryq/internal/config"
	"github.com/justapithecus/ferryq/internal/logging"
)

func TestBuildArchiveFunc_NilWhenUnconfigured(t *testing.T) {
	cfg := &config.Config{}
	fn, err := buildArchiveFunc(cfg, logging.New())
	if err != nil {
		t.Fatalf("buildArchiveFunc: %v", err)
	}
	if fn != nil {
		t.Fatal("expected nil ArchiveFunc when Archive config is unset")
	}
}

func TestBuildArchiveFunc_RequiresBucket(t *testing.T) {
	cfg := &config.Config{Archive: &config.ArchiveConfig{}}
	_, err := buildArchiveFunc(cfg, logging.New())
	if err == nil {
		t.Fatal("expected error when Archive is configured without a bucket")
	}
}
