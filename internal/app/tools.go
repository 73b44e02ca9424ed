package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"housebot/internal/config"
	"housebot/internal/eventbus"
	"housebot/internal/household"
	"housebot/internal/household/dinner"
	"housebot/internal/notifier"
	"housebot/internal/scheduler"
	"housebot/internal/storage"
	"housebot/pkg/logx"
)

// Migrate creates the schema for the configured database and upserts the
// configured residents. With clear, the household tables are dropped first.
func Migrate(ctx context.Context, cfgPath string, clear bool, log logx.Logger) (int, error) {
	cfg, err := config.NewManager(cfgPath).Load()
	if err != nil {
		return 0, err
	}
	st, settings, err := openForTool(ctx, cfg, false, log)
	if err != nil {
		return 0, err
	}
	defer st.Close()

	if err := st.Migrate(ctx, clear); err != nil {
		return 0, fmt.Errorf("migrate: %w", err)
	}
	n, err := household.SeedResidents(ctx, st, settings.Residents)
	if err != nil {
		return n, err
	}
	log.Info("migrated", logx.Bool("cleared", clear), logx.Int("residents", n))
	return n, nil
}

// Preview prints one generated round without saving it. With memory, the
// configured residents are loaded into a throwaway database instead of
// reading the configured one.
func Preview(ctx context.Context, cfgPath string, limit int, memory bool, w io.Writer, log logx.Logger) error {
	cfg, err := config.NewManager(cfgPath).Load()
	if err != nil {
		return err
	}
	st, settings, err := openForTool(ctx, cfg, memory, log)
	if err != nil {
		return err
	}
	defer st.Close()

	if memory {
		if _, err := household.SeedResidents(ctx, st, settings.Residents); err != nil {
			return err
		}
	}
	p := dinner.New(st, discard{}, settings.Dinner, log, eventbus.New())
	rows, err := p.Preview(ctx, limit)
	if err != nil {
		return err
	}
	for i, d := range rows {
		assistant := d.Assistant.Name
		if d.Solo() {
			assistant = "(solo)"
		}
		if _, err := fmt.Fprintf(w, "%2d. %s: %s + %s\n", i+1, dinner.FormatDate(d.Date), d.HeadChef.Name, assistant); err != nil {
			return err
		}
	}
	return nil
}

func openForTool(ctx context.Context, cfg *config.Config, memory bool, log logx.Logger) (*storage.Store, household.Settings, error) {
	scfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, household.Settings{}, err
	}
	if memory {
		scfg = storage.Config{Driver: "memory"}
	}
	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, household.Settings{}, err
	}
	settings, err := household.SettingsFrom(cfg.Household, scheduler.New(schedCfg, log).Location())
	if err != nil {
		return nil, household.Settings{}, err
	}

	octx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	st, err := storage.Open(octx, scfg, log.With(logx.String("comp", "storage")))
	if errors.Is(err, storage.ErrDisabled) {
		return nil, household.Settings{}, errors.New("storage.driver is none; nothing to do")
	}
	if err != nil {
		return nil, household.Settings{}, fmt.Errorf("open storage: %w", err)
	}
	return st, settings, nil
}

// discard drops notifications. The command line tools never send.
type discard struct{}

func (discard) Notify(context.Context, notifier.Notification) error { return nil }
