package backend

import (
	"compress/zlib"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"diaview/internal/config"
	renderrors "diaview/internal/errors"
	"diaview/internal/logging"
	"diaview/internal/ratelimit"
	"diaview/internal/types"
)

// maxRemoteBody caps how much of a response body is read, artifact or
// diagnostic alike.
const maxRemoteBody = 8 << 20

// RemoteBackend renders through an HTTP rendering service with the
// GET {endpoint}/{type}/{format}/{deflate+base64url(content)} URL shape.
//
// There is no cheap probe for the service, so availability is assumed true
// until a render attempt proves otherwise. Requests are spaced by the
// session's rate limiter. When an SVG render fails for a reason that is not
// the client's own input, the same content is retried once against the PNG
// variant of the endpoint. That is a format fallback, not a transient-error
// retry policy.
type RemoteBackend struct {
	endpoint string
	client   *http.Client
	limiter  *ratelimit.Limiter
	logger   logging.Logger
}

// NewRemoteBackend creates the remote HTTP backend.
func NewRemoteBackend(cfg config.RemoteConfig, limiter *ratelimit.Limiter, logger logging.Logger) *RemoteBackend {
	return &RemoteBackend{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   &http.Client{Timeout: cfg.Timeout()},
		limiter:  limiter,
		logger:   logger.WithComponent("backend_remote"),
	}
}

// Kind identifies the backend.
func (b *RemoteBackend) Kind() types.BackendKind {
	return types.BackendRemote
}

// Probe reports the service's full grammar coverage. Availability is not
// verified by a network call; a failed render is the signal.
func (b *RemoteBackend) Probe(ctx context.Context) types.Capability {
	return types.Capability{
		Backend:   types.BackendRemote,
		Available: true,
		SupportedTypes: typeSet(
			types.DiagramMermaid,
			types.DiagramPlantUML,
			types.DiagramC4PlantUML,
			types.DiagramGraphviz,
			types.DiagramStructurizr,
		),
	}
}

// Render encodes the content into the URL and fetches the SVG variant,
// falling back to PNG unless the failure was a client error. A 4xx means
// the service rejected the input itself, usually a syntax error, and
// retrying it as PNG would only mask the diagnostic.
func (b *RemoteBackend) Render(ctx context.Context, req types.RenderRequest) types.RenderResult {
	encoded, err := encodeContent(req.Content)
	if err != nil {
		return types.ErrorResult(fmt.Sprintf("encoding diagram content: %v", err))
	}

	payload, svgErr := b.fetch(ctx, b.renderURL(req.Type, "svg", encoded))
	if svgErr == nil {
		return types.SVGResult(payload)
	}
	if renderrors.IsType(svgErr, renderrors.ErrorTypeClient) {
		return types.ErrorResult(svgErr.Error())
	}

	b.logger.Warn(ctx, svgErr, "SVG render failed, retrying as PNG",
		"type", string(req.Type))

	payload, pngErr := b.fetch(ctx, b.renderURL(req.Type, "png", encoded))
	if pngErr == nil {
		return types.PNGResult(payload)
	}

	return types.ErrorResult(svgErr.Error())
}

// renderURL builds the request URL for one format.
func (b *RemoteBackend) renderURL(diagramType types.DiagramType, format, encoded string) string {
	return fmt.Sprintf("%s/%s/%s/%s", b.endpoint, diagramType, format, encoded)
}

// fetch issues one rate-limited GET and classifies any failure.
func (b *RemoteBackend) fetch(ctx context.Context, url string) ([]byte, error) {
	var payload []byte

	err := b.limiter.Throttle(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return renderrors.NewInternalError("remote_request", "building request", err)
		}

		resp, err := b.client.Do(req)
		if err != nil {
			return classifyTransportError(err)
		}
		defer resp.Body.Close()

		// One extra byte distinguishes an exactly-full body from an
		// oversize one.
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBody+1))
		if err != nil {
			return renderrors.NewConnectionError("remote_body", "reading response body", err)
		}
		if len(body) > maxRemoteBody {
			return renderrors.NewServerError("remote_oversize",
				fmt.Sprintf("remote render failed: response exceeds %d bytes", maxRemoteBody), nil)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			payload = body
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return renderrors.NewClientError("remote_rejected",
				fmt.Sprintf("remote render failed: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
		default:
			return renderrors.NewServerError("remote_server",
				fmt.Sprintf("remote render failed: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
		}
	})
	if err != nil {
		return nil, err
	}

	return payload, nil
}

// classifyTransportError maps transport failures onto the error taxonomy.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return renderrors.NewTimeoutError("remote_timeout", "remote render timed out", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return renderrors.NewTimeoutError("remote_timeout", "remote render timed out", err)
	}
	return renderrors.NewConnectionError("remote_unreachable", "remote endpoint unreachable", err)
}

// encodeContent compresses the source and encodes it URL-safely, the wire
// format the rendering service expects in its path segment.
func encodeContent(content string) (string, error) {
	var buf strings.Builder
	encoder := base64.NewEncoder(base64.URLEncoding, &buf)

	w, err := zlib.NewWriterLevel(encoder, zlib.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := w.Write([]byte(content)); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	if err := encoder.Close(); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// Close drops idle connections held for the session.
func (b *RemoteBackend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}
