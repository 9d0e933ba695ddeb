package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/audiolibrelab/voicecapture/internal/service"
)

// executePipeline runs the pipeline steps after startStep, which the
// calling command has already performed.
func executePipeline(ctx context.Context, svc service.Service, name string, startStep rune) error {
	if pipeline == "" {
		return nil
	}

	steps := strings.ToLower(pipeline)

	// Find the starting position in the pipeline
	startIndex := strings.IndexRune(steps, startStep)
	if startIndex == -1 {
		return fmt.Errorf("step '%c' not found in pipeline '%s'", startStep, pipeline)
	}

	rest := steps[startIndex+1:]
	if rest == "" {
		return nil
	}
	fmt.Printf("Pipeline: continuing with '%s'\n", rest)
	return svc.RunPipeline(ctx, name, rest, promptStop)
}
