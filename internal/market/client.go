package market

import (
	"context"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/twmarket-cli/internal/dates"
)

// Transport fetches one upstream payload. Implementations own retries,
// rate limiting, and proxy selection; a returned error means the fetch
// failed outright and the payload was never partially delivered.
type Transport interface {
	Get(ctx context.Context, rawURL string, params url.Values) ([]byte, error)
}

// Options selects which categories a Client fetches and how it paces
// consecutive requests to the same source. Price is mandatory: it is the
// driving key set of every canonical row.
type Options struct {
	InstitutionalInvestors bool
	CreditTransactions     bool

	// Delay is the minimum interval between requests to one source, per
	// the exchanges' acceptable-use terms.
	Delay time.Duration
}

// State tracks one (source, date) fetch through its lifecycle.
type State int

const (
	StatePending State = iota
	StateFetchingPrice
	StateFetchingInvestors
	StateFetchingCredit
	StateCombining
	StateDone
	StateNoData      // terminal: market closed
	StateUnsupported // terminal: date precedes the availability window
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFetchingPrice:
		return "fetching_price"
	case StateFetchingInvestors:
		return "fetching_investors"
	case StateFetchingCredit:
		return "fetching_credit"
	case StateCombining:
		return "combining"
	case StateDone:
		return "done"
	case StateNoData:
		return "no_data"
	case StateUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Client sequences era selection, transport, variant parsing, and
// combination for whole (source, date) fetches. The parsing core is pure;
// the Client is where pacing and ordering live.
type Client struct {
	transport Transport
	opts      Options
	pacers    map[Source]*rate.Limiter
	log       *zap.Logger
}

// NewClient builds a Client over the given transport.
func NewClient(t Transport, opts Options) *Client {
	pacers := make(map[Source]*rate.Limiter, len(Sources()))
	for _, s := range Sources() {
		every := rate.Inf
		if opts.Delay > 0 {
			every = rate.Every(opts.Delay)
		}
		pacers[s] = rate.NewLimiter(every, 1)
	}
	return &Client{
		transport: t,
		opts:      opts,
		pacers:    pacers,
		log:       zap.L().Named("market"),
	}
}

// Fetch retrieves, parses, and combines every enabled category of one
// source for one date. A NoDataError from any category abandons the whole
// (source, date) fetch with no partial rows; an UnsupportedEraError or
// schema drift is fatal to the caller.
func (c *Client) Fetch(ctx context.Context, source Source, date string) ([]Row, error) {
	if _, err := dates.Validate(date); err != nil {
		return nil, err
	}

	log := c.log.With(zap.Stringer("source", source), zap.String("date", date))
	state := StatePending

	advance := func(next State) {
		log.Debug("fetch state", zap.Stringer("from", state), zap.Stringer("to", next))
		state = next
	}

	advance(StateFetchingPrice)
	price, err := c.fetchCategory(ctx, source, Price, date)
	if err != nil {
		return c.terminal(log, err)
	}

	var investors *CategoryRecord
	if c.opts.InstitutionalInvestors {
		advance(StateFetchingInvestors)
		investors, err = c.fetchCategory(ctx, source, InstitutionalInvestors, date)
		if err != nil {
			return c.terminal(log, err)
		}
	}

	var credit *CategoryRecord
	if c.opts.CreditTransactions {
		advance(StateFetchingCredit)
		credit, err = c.fetchCategory(ctx, source, CreditTransactions, date)
		if err != nil {
			return c.terminal(log, err)
		}
	}

	advance(StateCombining)
	rows := Combine(date, source, price, investors, credit)
	advance(StateDone)
	log.Info("fetched", zap.Int("rows", len(rows)))

	return rows, nil
}

// terminal classifies a category-level failure into its terminal state
// and propagates it unchanged.
func (c *Client) terminal(log *zap.Logger, err error) ([]Row, error) {
	switch {
	case IsNoData(err):
		log.Info("no data (market closed)", zap.Stringer("state", StateNoData), zap.Error(err))
	case IsUnsupported(err):
		log.Error("date outside availability window", zap.Stringer("state", StateUnsupported), zap.Error(err))
	case IsSchemaDrift(err):
		log.Error("schema drift detected", zap.Error(err))
	default:
		log.Warn("fetch failed", zap.Error(err))
	}
	return nil, err
}

// fetchCategory runs one era-selected request/parse round trip, pacing
// requests to the source.
func (c *Client) fetchCategory(ctx context.Context, source Source, category Category, date string) (*CategoryRecord, error) {
	era, err := SelectVariant(source, category, date)
	if err != nil {
		return nil, err
	}
	if err := c.pacers[source].Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "market: pacing wait")
	}
	rawURL, params := era.Request(date)
	body, err := c.transport.Get(ctx, rawURL, params)
	if err != nil {
		return nil, eris.Wrapf(err, "market: %s %s %s", source, category, date)
	}
	return era.Parse(date, body)
}

// FetchAll fetches every source for one date and concatenates the rows.
// A closed market on one source skips just that source; an unsupported
// date or any other failure aborts the whole multi-source fetch.
func (c *Client) FetchAll(ctx context.Context, date string) ([]Row, error) {
	var all []Row
	for _, source := range Sources() {
		rows, err := c.Fetch(ctx, source, date)
		if err != nil {
			if IsNoData(err) {
				continue
			}
			return nil, err
		}
		all = append(all, rows...)
	}
	return all, nil
}
