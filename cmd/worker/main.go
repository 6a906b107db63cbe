package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classattend/internal/barcode"
	"classattend/internal/clock"
	"classattend/internal/config"
	"classattend/internal/metrics"
	"classattend/internal/queue"
	"classattend/internal/render"
	"classattend/internal/store"
)

// Worker renders barcode images from queue jobs and periodically sweeps
// today's tokens so their expiry covers the current lecture occurrence.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classattend:jobs")
	}

	barcodes := barcode.NewRepository(db.Client)
	renewer := barcode.NewRenewer(barcodes, clock.System{}, cfg.RenewMargin)

	var uploader *render.Uploader
	if cfg.ImageHostURL != "" && cfg.ImageHostKey != "" && cfg.ImageHostSecret != "" {
		uploader = render.NewUploader(cfg.ImageHostURL, cfg.ImageHostKey, cfg.ImageHostSecret)
		log.Println("image host configured:", cfg.ImageHostURL)
	} else {
		log.Println("image host not configured, rendering inline data URLs")
	}
	renderer := render.NewRenderer(uploader)

	go renewLoop(ctx, renewer, cfg.RenewInterval)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != queue.TypeRender {
			continue
		}

		id := string(msg.Body)
		token, err := barcodes.Get(ctx, id)
		if err != nil {
			log.Printf("fetch barcode %s failed: %v", id, err)
			continue
		}

		// Rendering is best-effort: a failed render leaves the token usable
		// by manual code entry.
		rendered, err := renderer.Render(token.Value, id+".png")
		if err != nil {
			log.Printf("render failed for %s: %v", id, err)
			continue
		}
		if err := barcodes.UpdateRenderedCode(ctx, id, rendered); err != nil {
			log.Printf("store rendered code for %s failed: %v", id, err)
			continue
		}
		log.Printf("barcode %s rendered", id)
	}

	log.Println("worker stopped")
}

// renewLoop sweeps all of today's active tokens on an interval. The scan path
// renews lazily as well; this keeps rarely-scanned tokens fresh too.
func renewLoop(ctx context.Context, renewer *barcode.Renewer, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := renewer.RenewAllDueToday(ctx)
			if err != nil {
				log.Printf("renew sweep failed: %v", err)
				continue
			}
			metrics.Renewals.Add(float64(report.Renewed))
			if report.Renewed > 0 || len(report.Errors) > 0 {
				log.Printf("renew sweep: scanned=%d renewed=%d errors=%d", report.Scanned, report.Renewed, len(report.Errors))
			}
			for _, te := range report.Errors {
				log.Printf("renew failed for %s: %s", te.TokenID, te.Message)
			}
		}
	}
}
