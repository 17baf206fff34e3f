package collector

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"steam-price-api/internal/catalog"
	"steam-price-api/internal/config"
	"steam-price-api/internal/steam"
)

// saveEvery is how many skins are processed between checkpoint saves
const saveEvery = 5

// Options controls one collection run
type Options struct {
	Limit          int  // 0 = no limit
	Resume         bool // continue from the checkpoint
	IgnoreStatTrak bool // skip StatTrak variants
}

// Stats accumulates progress counters for one run
type Stats struct {
	TotalSkins         int
	ProcessedSkins     int
	ProcessedVariants  int
	SuccessfulRequests int
	FailedRequests     int
	StartTime          time.Time
}

// Collector walks the skin catalog and records current market prices through
// the rate-limited client, checkpointing as it goes so interrupted runs can
// resume.
type Collector struct {
	cfg    *config.Config
	logger *logrus.Logger
	client *steam.Client

	database   *catalog.Database
	checkpoint *catalog.Checkpoint
	stats      Stats
}

// New creates a collector over an already-loaded catalog
func New(cfg *config.Config, client *steam.Client, database *catalog.Database, log *logrus.Logger) *Collector {
	return &Collector{
		cfg:        cfg,
		logger:     log,
		client:     client,
		database:   database,
		checkpoint: catalog.LoadCheckpoint(cfg.CheckpointPath),
	}
}

// Stats returns a copy of the run counters
func (collector *Collector) Stats() Stats {
	return collector.stats
}

// Run collects prices for the whole catalog, newest skins first. Failed items
// are skipped, never fatal; only context cancellation aborts the run. State
// is saved on exit regardless of how the run ended.
func (collector *Collector) Run(ctx context.Context, options Options) error {
	skins := collector.database.Skins
	catalog.SortByDateDesc(skins)

	collector.stats = Stats{
		TotalSkins: len(skins),
		StartTime:  time.Now(),
	}

	if options.Limit > 0 && options.Limit < len(skins) {
		skins = skins[:options.Limit]
		collector.logger.Infof("Limited to first %d skins", options.Limit)
	}

	startIndex := 0
	if options.Resume && collector.checkpoint.LastProcessedSkinID != "" {
		for i, skin := range skins {
			if skin.ID == collector.checkpoint.LastProcessedSkinID {
				startIndex = i + 1
				break
			}
		}
		collector.logger.Infof("Resuming from skin index %d", startIndex)
	}

	defer collector.saveState()

	for i := startIndex; i < len(skins); i++ {
		skin := skins[i]
		collector.logger.Infof("[%d/%d] Processing: %s", i+1, len(skins), skin.FullName)

		if err := collector.processSkin(ctx, skin, options.IgnoreStatTrak); err != nil {
			return err
		}

		collector.stats.ProcessedSkins++
		collector.checkpoint.ProcessedSkins = collector.stats.ProcessedSkins
		collector.checkpoint.LastProcessedSkinID = skin.ID

		if (i+1)%saveEvery == 0 {
			collector.saveState()
			collector.logProgress()
		}
	}

	collector.logger.Info("Price collection completed")
	collector.logProgress()
	return nil
}

// processSkin collects prices for every variant of one skin
func (collector *Collector) processSkin(ctx context.Context, skin *catalog.Skin, ignoreStatTrak bool) error {
	for _, variant := range skin.Variants {
		if err := collector.collectVariant(ctx, skin, variant, false); err != nil {
			return err
		}
		if !ignoreStatTrak {
			if err := collector.collectVariant(ctx, skin, variant, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// collectVariant fetches one price and stores it in the catalog record. A
// missing result only bumps the failure counter.
func (collector *Collector) collectVariant(ctx context.Context, skin *catalog.Skin, variant *catalog.Variant, statTrak bool) error {
	name := catalog.MarketHashName(skin, variant, statTrak)

	// USD
	data, _, err := collector.client.FetchPrice(ctx, name, 1)
	collector.stats.ProcessedVariants++
	collector.checkpoint.ProcessedVariants = collector.stats.ProcessedVariants
	if err != nil {
		return err
	}

	if data == nil {
		collector.logger.Warnf("No price data for %s", name)
		collector.stats.FailedRequests++
		collector.checkpoint.FailedItems = append(collector.checkpoint.FailedItems, name)
		return collector.pace(ctx)
	}

	record := catalog.PriceRecord{
		USD:         steam.PriceValue(data),
		LastUpdated: time.Now().Format(time.RFC3339),
	}
	if statTrak {
		variant.Prices.StatTrak = record
	} else {
		variant.Prices.Normal = record
	}

	collector.stats.SuccessfulRequests++
	collector.logger.Debugf("Collected %s: $%.2f", name, record.USD)
	return collector.pace(ctx)
}

// pace spaces out requests between variants
func (collector *Collector) pace(ctx context.Context) error {
	if collector.cfg.BatchDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(collector.cfg.BatchDelay):
		return nil
	}
}

func (collector *Collector) saveState() {
	if err := collector.checkpoint.Save(collector.cfg.CheckpointPath); err != nil {
		collector.logger.Errorf("Could not save checkpoint: %v", err)
	}
	if err := collector.database.Save(collector.cfg.CatalogPath); err != nil {
		collector.logger.Errorf("Could not save catalog: %v", err)
	}
}

func (collector *Collector) logProgress() {
	elapsed := time.Since(collector.stats.StartTime)

	fields := logrus.Fields{
		"processed_skins":    collector.stats.ProcessedSkins,
		"total_skins":        collector.stats.TotalSkins,
		"processed_variants": collector.stats.ProcessedVariants,
		"successful":         collector.stats.SuccessfulRequests,
		"failed":             collector.stats.FailedRequests,
		"elapsed":            elapsed.Round(time.Second).String(),
	}
	if elapsed > 0 && collector.stats.ProcessedVariants > 0 {
		rate := float64(collector.stats.ProcessedVariants) / elapsed.Minutes()
		fields["variants_per_minute"] = rate
	}

	collector.logger.WithFields(fields).Info("Collection progress")
}
