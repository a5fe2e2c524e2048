package probes

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/casatester/casatester/pkg/netclient"
)

// fetchAll GETs every path under the target with at most limit requests
// in flight. Results and trace lines keep the order of paths. The first
// transport error cancels the remaining requests and is returned.
func fetchAll(ctx context.Context, s *session, urls []string, limit int) ([]*netclient.Response, error) {
	resps := make([]*netclient.Response, len(urls))
	errs := make([]error, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, u := range urls {
		g.Go(func() error {
			resps[i], errs[i] = s.client.Request(gctx, netclient.Request{URL: u})
			return errs[i]
		})
	}
	err := g.Wait()
	for i := range urls {
		if resps[i] == nil && errs[i] == nil {
			continue
		}
		s.record(resps[i], errs[i])
	}
	return resps, err
}
