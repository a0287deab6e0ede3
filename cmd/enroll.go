package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/embedder"
	"github.com/kozaktomas/face-attendance/internal/engine"
	"github.com/kozaktomas/face-attendance/internal/snapshot"
	"github.com/kozaktomas/face-attendance/internal/window"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [image-file]",
	Short: "Enroll a new identity from a photo",
	Long: `Enroll a new identity into the attendance roster from a photo.
The photo is sent to the embedder service, which must detect exactly one
face. The face crop is stored alongside the embedding.

Examples:
  face-attendance enroll --name "Jana Novakova" --role teacher jana.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("name", "", "Person's display name (required)")
	enrollCmd.Flags().String("role", "", "Person's role, e.g. teacher or student (required)")
	enrollCmd.MarkFlagRequired("name")
	enrollCmd.MarkFlagRequired("role")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	name := mustGetString(cmd, "name")
	role := mustGetString(cmd, "role")

	cfg := config.Load()
	ctx := context.Background()

	if cfg.Embedder.URL == "" {
		return fmt.Errorf("EMBEDDER_URL environment variable is required")
	}

	frame, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image file: %w", err)
	}

	client, err := embedder.New(cfg.Embedder.URL)
	if err != nil {
		return fmt.Errorf("configuring embedder client: %w", err)
	}

	fmt.Println("Detecting face...")
	detections, err := client.DetectAndEmbed(ctx, frame)
	if err != nil {
		return fmt.Errorf("embedding photo: %w", err)
	}
	if len(detections) == 0 {
		return fmt.Errorf("no face detected in %s", args[0])
	}
	if len(detections) > 1 {
		return fmt.Errorf("%d faces detected in %s, enrollment needs exactly one", len(detections), args[0])
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	policy, err := window.NewPolicy(cfg.Windows.Morning, cfg.Windows.Afternoon)
	if err != nil {
		return fmt.Errorf("parsing attendance windows: %w", err)
	}

	eng := engine.New(engine.Config{
		Tolerance:         cfg.Match.Tolerance,
		IndexThreshold:    cfg.Match.IndexThreshold,
		Cooldown:          cfg.Throttle.Cooldown,
		Windows:           policy,
		ArrivalGreeting:   cfg.Greetings.Arrival,
		DepartureGreeting: cfg.Greetings.Departure,
		EmbeddingDim:      cfg.Embedder.Dim,
	}, store)

	saver, err := snapshot.NewSaver(cfg.Snapshot.Dir)
	if err != nil {
		return fmt.Errorf("preparing snapshot directories: %w", err)
	}

	imagePath, err := saver.SaveFaceCrop(frame, detections[0].BBox, time.Now())
	if err != nil {
		fmt.Printf("Warning: failed to save face crop: %v\n", err)
	}

	identity, err := eng.Enroll(ctx, detections[0].Embedding, name, role, imagePath)
	if err != nil {
		return fmt.Errorf("enrolling identity: %w", err)
	}

	fmt.Printf("Enrolled %s (%s) with ID %d\n", identity.Name, identity.Role, identity.ID)
	if imagePath != "" {
		fmt.Printf("Face crop: %s\n", imagePath)
	}
	return nil
}
