package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Coldness00/Fumes-Detector/internal/config"
	"github.com/Coldness00/Fumes-Detector/internal/core"
	"github.com/Coldness00/Fumes-Detector/internal/di"
	"github.com/fatih/color"
	"go.uber.org/zap"
)

func main() {
	flags := di.ParseFlags()

	// Build the dependency injection container
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run analyses a single image and prints the verdict
func run(
	flags *di.CLIFlags,
	cfg *config.Config,
	logger *zap.Logger,
	inferenceClient core.InferenceClient,
) error {
	defer logger.Sync()

	// Close any resources that need closing
	if closer, ok := inferenceClient.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Error("Failed to close inference client", zap.Error(err))
			}
		}()
	}

	// Read image from file or stdin
	var imageReader io.Reader
	name := "stdin"
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer file.Close()
		imageReader = file
		name = flags.InputFile
		logger.Info("Reading image from file", zap.String("file", flags.InputFile))
	} else {
		imageReader = os.Stdin
		logger.Info("Reading image from stdin")
	}

	image, err := io.ReadAll(imageReader)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	inferenceCfg := cfg.GetInference()

	heading := color.New(color.Bold)
	heading.Println("\n=== Image ===")
	fmt.Printf("Source: %s\n", name)
	fmt.Printf("Size: %d bytes\n", len(image))

	heading.Println("\n=== Analysis ===")
	fmt.Printf("Provider: %s\n", inferenceCfg.Provider)
	fmt.Printf("Timeout: %v\n", inferenceCfg.Timeout)

	ctx, cancel := context.WithTimeout(context.Background(), inferenceCfg.Timeout)
	defer cancel()

	startTime := time.Now()
	rawText, err := inferenceClient.Infer(ctx, image, inferenceCfg.Prompt)
	if err != nil {
		color.Red("Inference failed: %v", err)
		return err
	}
	duration := time.Since(startTime)

	verdict := core.NewVerdict(name, rawText, time.Now(), core.StateRecorded)

	heading.Println("\n=== Results ===")
	answerColor(verdict.Answer).Printf("Answer: %s\n", verdict.Answer)
	fmt.Printf("Confidence: %.2f\n", verdict.Confidence)
	fmt.Printf("Raw text: %s\n", verdict.RawText)
	fmt.Printf("Processing time: %v\n", duration)
	return nil
}

func answerColor(answer core.Answer) *color.Color {
	switch answer {
	case core.AnswerYes:
		return color.New(color.FgRed, color.Bold)
	case core.AnswerMaybe:
		return color.New(color.FgYellow)
	case core.AnswerNo:
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgWhite)
	}
}
