package services

import (
	"context"
	"time"

	"swap-backend/internal/backends"
	"swap-backend/internal/metrics"
	"swap-backend/internal/models"

	"github.com/sirupsen/logrus"
)

// QuoteResolver acquires quotes with backend fallback. Fallback is narrow:
// it only triggers when the requested backend cannot serve the CHAIN. Other
// failures (no liquidity, validation, upstream outage) surface as-is so the
// caller never silently gets a different venue's price for a pricable pair.
type QuoteResolver struct {
	registry *backends.Registry
}

// NewQuoteResolver creates the resolver over the backend registry
func NewQuoteResolver(registry *backends.Registry) *QuoteResolver {
	return &QuoteResolver{registry: registry}
}

// ResolvedQuote is the quote plus the backend that actually produced it
type ResolvedQuote struct {
	Quote              *models.Quote
	EffectiveBackendID string
	FellBack           bool
}

// Resolve quotes via the requested backend, falling back through the
// registry's registration order only on chain-unsupported failures. The
// requested backend's original error is preserved if every fallback also
// fails.
func (r *QuoteResolver) Resolve(ctx context.Context, backendID string, req *models.SwapRequest) (*ResolvedQuote, error) {
	adapter, err := r.registry.Get(backendID)
	if err != nil {
		return nil, err
	}

	quote, origErr := r.getQuote(ctx, adapter, req)
	if origErr == nil {
		return &ResolvedQuote{Quote: quote, EffectiveBackendID: backendID}, nil
	}
	if models.CodeOf(origErr) != models.ErrCodeChainUnsupported {
		return nil, origErr
	}

	for _, candidate := range r.registry.Supporting(req.ChainID) {
		if candidate.ID() == backendID {
			continue
		}
		quote, err := r.getQuote(ctx, candidate, req)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"requested": backendID,
				"candidate": candidate.ID(),
				"chain_id":  req.ChainID,
			}).WithError(err).Debug("Fallback backend could not quote")
			continue
		}
		metrics.QuoteFallbacksTotal.WithLabelValues(backendID, candidate.ID()).Inc()
		logrus.WithFields(logrus.Fields{
			"requested": backendID,
			"effective": candidate.ID(),
			"chain_id":  req.ChainID,
		}).Info("Quote served by fallback backend")
		return &ResolvedQuote{Quote: quote, EffectiveBackendID: candidate.ID(), FellBack: true}, nil
	}

	// no fallback could serve; the requested backend's failure is the answer
	return nil, origErr
}

func (r *QuoteResolver) getQuote(ctx context.Context, adapter backends.Adapter, req *models.SwapRequest) (*models.Quote, error) {
	start := time.Now()
	quote, err := adapter.GetQuote(ctx, req.ChainID, req)
	metrics.QuoteDuration.WithLabelValues(adapter.ID()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.QuotesTotal.WithLabelValues(adapter.ID(), string(models.CodeOf(err))).Inc()
		return nil, err
	}
	metrics.QuotesTotal.WithLabelValues(adapter.ID(), "ok").Inc()
	return quote, nil
}
