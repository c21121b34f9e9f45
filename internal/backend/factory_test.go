package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ledger/internal/config"
	"ledger/internal/services"
)

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{
		DataBackend:  "sqlite",
		SQLiteDBPath: "/tmp/ledger.db",
		Timezone:     "UTC",
		CacheSize:    8,
		CacheTTL:     time.Minute,
	}
	got, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if got.Type != SQLiteBackend || got.SQLiteDBPath != "/tmp/ledger.db" || got.Location.String() != "UTC" {
		t.Errorf("unexpected config: %+v", got)
	}

	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("expected error for unknown backend")
	} else if !strings.Contains(err.Error(), "[sqlite memory]") {
		t.Errorf("error does not list valid backends: %v", err)
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "memory", Timezone: "Nowhere/Land"}); err == nil {
		t.Error("expected error for unknown timezone")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"unknown", Config{Type: "sheets"}, true},
		{"amqp without queue", Config{Type: MemoryBackend, AMQPURL: "amqp://localhost", AMQPExchange: "ledger"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultFactory_CreateBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	t.Run("memory", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend, Location: time.UTC})
		if err != nil {
			t.Fatalf("CreateBackend: %v", err)
		}
		defer res.Cleanup()

		if _, err := res.Service.ReplaceDay(ctx, "u1", "2024-03-01", []services.ItemInput{{Amount: "5", Category: "grocery"}}); err != nil {
			t.Fatalf("ReplaceDay: %v", err)
		}
		if err := res.Service.Ping(ctx); err != nil {
			t.Fatalf("Ping: %v", err)
		}
	})

	t.Run("sqlite opens lazily", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "ledger.db")
		res, err := f.CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path, Location: time.UTC, CacheSize: 4, CacheTTL: time.Minute})
		if err != nil {
			t.Fatalf("CreateBackend: %v", err)
		}
		defer res.Cleanup()

		day, err := res.Service.Day(ctx, "u1", "2024-03-01")
		if err != nil {
			t.Fatalf("Day: %v", err)
		}
		if len(day.Items) != 0 {
			t.Fatalf("expected empty day, got %+v", day)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := f.CreateBackend(ctx, Config{Type: "sheets"}); err == nil {
			t.Fatal("expected error")
		}
	})
}
