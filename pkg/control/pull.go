package control

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/corvid-labs/ago/pkg/codec"
	"github.com/corvid-labs/ago/pkg/config"
	"github.com/corvid-labs/ago/pkg/types"
)

// fetchTimeout bounds one remote template fetch. Generous relative to the
// control socket's own deadlines since it crosses the network, not a
// local Unix socket.
const fetchTimeout = 15 * time.Second

// TemplateFetcher retrieves the raw YAML bytes of a named template from a
// configured remote registry entry. No pack repo offers a ready-made
// client for this narrow fetch-a-named-file shape, so the only
// implementation (httpTemplateFetcher) is stdlib net/http — see
// DESIGN.md for why that's the one control-path component not grounded
// on a third-party library.
type TemplateFetcher interface {
	Fetch(ctx context.Context, entry config.RegistryEntry, templateName string) ([]byte, error)
}

// httpTemplateFetcher fetches "<url>/<template>.yaml" over plain HTTP(S).
// It is the default TemplateFetcher for RegistryHTTP entries; GitHub-like
// and GitLab-like registries (SPEC_FULL.md's broader Non-goals exclude a
// real implementation of those API surfaces) report NoSuchTemplate.
type httpTemplateFetcher struct {
	client *http.Client
}

// NewHTTPTemplateFetcher returns the default TemplateFetcher.
func NewHTTPTemplateFetcher() TemplateFetcher {
	return &httpTemplateFetcher{client: &http.Client{Timeout: fetchTimeout}}
}

func (f *httpTemplateFetcher) Fetch(ctx context.Context, entry config.RegistryEntry, templateName string) ([]byte, error) {
	if entry.Kind != config.RegistryHTTP {
		return nil, types.NewError(types.KindNoSuchTemplate, string(entry.Kind)+" registries are not fetchable", nil)
	}

	url := strings.TrimRight(entry.URL, "/") + "/" + templateName + ".yaml"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewError(types.KindNoSuchTemplate, url, err)
	}
	if entry.TokenRef != "" {
		httpReq.Header.Set("Authorization", "Bearer "+entry.TokenRef)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.KindNoSuchTemplate, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewError(types.KindNoSuchTemplate, url+": "+resp.Status, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, types.NewError(types.KindNoSuchTemplate, url, err)
	}
	return body, nil
}

func handlePull(s *Server, conn net.Conn, req *codec.Request) error {
	var args PullArgs
	if err := decodeArgs(req, &args); err != nil {
		return respond(conn, nil, err)
	}

	if s.fetcher == nil {
		return respond(conn, nil, types.NewError(types.KindConfigInvalid, "pull is disabled on this daemon", nil))
	}

	entry, ok := s.cfg.Registries()[args.Registry]
	if !ok {
		return respond(conn, nil, types.NewError(types.KindConfigInvalid, "unknown registry: "+args.Registry, nil))
	}

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	data, err := s.fetcher.Fetch(ctx, entry, args.Template)
	if err != nil {
		return respond(conn, nil, err)
	}

	dir := s.templates.PulledDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return respond(conn, nil, types.NewError(types.KindConfigInvalid, dir, err))
	}
	path := filepath.Join(dir, args.Template+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return respond(conn, nil, types.NewError(types.KindConfigInvalid, path, err))
	}

	return respond(conn, PullResult{Path: path}, nil)
}
