package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harentsoaR/prescripto-api/internal/config"
	"github.com/harentsoaR/prescripto-api/internal/repository"
)

func main() {
	var envFile string

	rootCmd := &cobra.Command{
		Use:   "prescripto-api",
		Short: "Prescripto appointment booking API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(envFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(envFile)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "indexes",
		Short: "Create the MongoDB indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexes(envFile)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger.Level(level)
}

func connectMongo(ctx context.Context, cfg *config.Config) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping MongoDB: %w", err)
	}
	return client, client.Database(cfg.MongoDatabase), nil
}

func runIndexes(envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if cfg.MongoURI == "" {
		return fmt.Errorf("MONGODB_URI is required")
	}

	ctx := context.Background()
	client, db, err := connectMongo(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	if err := repository.EnsureIndexes(ctx, db); err != nil {
		return err
	}
	logger.Info().Str("database", cfg.MongoDatabase).Msg("MongoDB indexes are up to date")
	return nil
}
