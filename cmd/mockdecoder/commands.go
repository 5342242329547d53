package main

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
)

func newLapCmd(addr *string) *cobra.Command {
	var tag, deviceID string

	cmd := &cobra.Command{
		Use:   "lap",
		Short: "Send a single track crossing for tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendPass(*addr, buildPass(tag, deviceID, model.SourceTrack))
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "transponder tag (required)")
	cmd.Flags().StringVar(&deviceID, "device-id", "", "decoder device id")
	cmd.MarkFlagRequired("tag")
	return cmd
}

func newPitInCmd(addr *string) *cobra.Command {
	var tag, deviceID string

	cmd := &cobra.Command{
		Use:   "pit-in",
		Short: "Send a pit-in crossing for tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendPass(*addr, buildPass(tag, deviceID, model.SourcePitIn))
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "transponder tag (required)")
	cmd.Flags().StringVar(&deviceID, "device-id", "", "decoder device id")
	cmd.MarkFlagRequired("tag")
	return cmd
}

func newPitOutCmd(addr *string) *cobra.Command {
	var tag, deviceID string

	cmd := &cobra.Command{
		Use:   "pit-out",
		Short: "Send a pit-out crossing for tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendPass(*addr, buildPass(tag, deviceID, model.SourcePitOut))
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "transponder tag (required)")
	cmd.Flags().StringVar(&deviceID, "device-id", "", "decoder device id")
	cmd.MarkFlagRequired("tag")
	return cmd
}

func newRunCmd(addr *string) *cobra.Command {
	var tags []string
	var interval time.Duration
	var count int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Repeatedly send track crossings for a set of tags, one goroutine per tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			done := make(chan struct{})
			for _, tag := range tags {
				go runTag(*addr, tag, interval, count, done)
			}
			for range tags {
				<-done
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "comma-separated transponder tags to simulate (required)")
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "time between crossings per tag")
	cmd.Flags().IntVar(&count, "count", 0, "number of crossings to send per tag (0 = unlimited)")
	cmd.MarkFlagRequired("tags")
	return cmd
}

func runTag(addr, tag string, interval time.Duration, count int, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sent := 0
	for {
		if err := sendPass(addr, buildPass(tag, "", model.SourceTrack)); err != nil {
			log.Error().Err(err).Str("tag", tag).Msg("sending simulated pass failed")
		}
		sent++
		if count > 0 && sent >= count {
			return
		}
		<-ticker.C
	}
}

func buildPass(tag, deviceID string, source model.Source) model.Pass {
	p := model.Pass{Tag: tag, Source: source}
	if deviceID != "" {
		p.DeviceID = &deviceID
	}
	return p
}
