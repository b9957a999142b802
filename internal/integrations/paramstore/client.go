package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentFetches bounds parallel SSM calls in GetParameters.
const maxConcurrentFetches = 4

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter is the interface that wraps GetParameter.
// Consumers (the OpenAI client, the JWT verifier bootstrap) depend on this
// interface rather than the concrete *Client.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client wraps an AWS SSM API for decrypted parameter retrieval.
type Client struct {
	api ssmAPI
}

func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	withDecryption := true
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("paramstore: parameter %q missing value", name)
	}
	return *out.Parameter.Value, nil
}

// Values is a prefetched set of parameters keyed by name. It satisfies
// Getter so consumers can be fed from a single cold-start fetch.
type Values map[string]string

func (v Values) GetParameter(_ context.Context, name string) (string, error) {
	val, ok := v[strings.TrimSpace(name)]
	if !ok {
		return "", fmt.Errorf("paramstore: parameter %q was not prefetched", name)
	}
	return val, nil
}

// GetParameters fetches several parameters concurrently and returns them
// keyed by the trimmed name. The first failure cancels the remaining fetches.
func (c *Client) GetParameters(ctx context.Context, names ...string) (Values, error) {
	if len(names) == 0 {
		return Values{}, nil
	}

	var mu sync.Mutex
	values := make(Values, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for _, name := range names {
		name := strings.TrimSpace(name)
		g.Go(func() error {
			v, err := c.GetParameter(gctx, name)
			if err != nil {
				return err
			}
			mu.Lock()
			values[name] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}
