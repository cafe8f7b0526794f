package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/pkg/archive"

	"github.com/bollardhq/bollard/pkg/log"
)

// BuildImage builds a Docker image from the checkout at dir using its
// Dockerfile, tagging it tag. Build output lines stream to the debug log;
// a build error reported in the stream aborts with that error text.
func (r *DockerRuntime) BuildImage(ctx context.Context, dir, tag string) error {
	if dir == "" {
		return fmt.Errorf("build directory cannot be empty")
	}
	if tag == "" {
		return fmt.Errorf("image tag cannot be empty")
	}

	buildCtx, err := archive.TarWithOptions(dir, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("failed to create build context: %w", err)
	}
	defer buildCtx.Close()

	resp, err := r.client.ImageBuild(ctx, buildCtx, dockertypes.ImageBuildOptions{
		Tags:        []string{tag},
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build image %s: %w", tag, err)
	}
	defer resp.Body.Close()

	logger := log.WithComponent("build")
	decoder := json.NewDecoder(resp.Body)
	for {
		var msg buildMessage
		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to decode build output: %w", err)
		}
		if errText := msg.errorText(); errText != "" {
			return fmt.Errorf("image build failed: %s", errText)
		}
		if line := msg.render(); line != "" {
			logger.Debug().Str("image", tag).Msg(line)
		}
	}
	return nil
}

// buildMessage is one JSON line of the engine's build output stream.
type buildMessage struct {
	Stream      string `json:"stream"`
	Status      string `json:"status"`
	Error       string `json:"error"`
	ErrorDetail struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
}

func (m buildMessage) errorText() string {
	if m.ErrorDetail.Message != "" {
		return m.ErrorDetail.Message
	}
	return m.Error
}

func (m buildMessage) render() string {
	if m.Stream != "" {
		return strings.TrimSpace(m.Stream)
	}
	return strings.TrimSpace(m.Status)
}
