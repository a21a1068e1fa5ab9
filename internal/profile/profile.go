// Package profile assembles read-only views of a person and their family
// circle from the registry graph. Nothing here detects anomalies; the
// aggregates feed investigators and the wealth comparison heuristics.
package profile

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"taxwatch/internal/graph"
	id "taxwatch/pkg/domain"
	dErrors "taxwatch/pkg/domain-errors"
)

// DefaultFamilyDepth bounds the family traversal when the caller does not
// choose a depth.
const DefaultFamilyDepth = 2

// Profile is the direct-facts view of one person.
type Profile struct {
	RNOKPP      id.RNOKPP                  `json:"rnokpp"`
	Name        string                     `json:"name"`
	Income      graph.IncomeSummary        `json:"income"`
	Employment  []graph.EmploymentRelation `json:"employment"`
	Properties  []graph.Property           `json:"properties"`
	PoAGranted  []graph.PoAGrant           `json:"poa_granted"`
	PoAReceived []graph.PoAGrant           `json:"poa_received"`
	Family      []graph.FamilyLink         `json:"family"`
}

// FamilyMember is one person reached by the family traversal, with the
// wealth facts counted for them.
type FamilyMember struct {
	RNOKPP        id.RNOKPP `json:"rnokpp"`
	Name          string    `json:"name,omitempty"`
	Depth         int       `json:"depth"`
	TotalIncome   float64   `json:"total_income"`
	TotalTax      float64   `json:"total_tax"`
	PropertyCount int       `json:"property_count"`
	OrgCount      int       `json:"org_count"`
}

// FamilyWealth is the aggregate over the root and every family member within
// the traversal depth. Each person contributes exactly once regardless of how
// many relationship paths reach them.
type FamilyWealth struct {
	RootRNOKPP    id.RNOKPP      `json:"root_rnokpp"`
	Depth         int            `json:"depth"`
	Members       []FamilyMember `json:"members"`
	TotalIncome   float64        `json:"total_income"`
	TotalTax      float64        `json:"total_tax"`
	PropertyCount int            `json:"property_count"`
	OrgCount      int            `json:"org_count"`
}

// Aggregator reads profiles and family wealth aggregates from the gateway.
type Aggregator struct {
	gateway graph.Gateway
	logger  *slog.Logger
}

type Option func(*Aggregator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

func New(gateway graph.Gateway, opts ...Option) (*Aggregator, error) {
	if gateway == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "gateway is required")
	}
	a := &Aggregator{gateway: gateway}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Person gathers the direct facts about one subject. The independent reads
// run in parallel and share cancellation.
func (a *Aggregator) Person(ctx context.Context, rnokpp id.RNOKPP) (*Profile, error) {
	name, found, err := a.gateway.PersonName(ctx, rnokpp)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "person %s not found in registry", rnokpp)
	}

	profile := &Profile{RNOKPP: rnokpp, Name: name}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		summary, err := a.gateway.IncomeSummary(ctx, rnokpp)
		if err != nil {
			return err
		}
		profile.Income = summary
		return nil
	})
	g.Go(func() error {
		relations, err := a.gateway.EmploymentRelations(ctx, rnokpp)
		if err != nil {
			return err
		}
		profile.Employment = relations
		return nil
	})
	g.Go(func() error {
		properties, err := a.gateway.OwnedProperties(ctx, rnokpp)
		if err != nil {
			return err
		}
		profile.Properties = properties
		return nil
	})
	g.Go(func() error {
		granted, err := a.gateway.PoAAsGrantor(ctx, rnokpp)
		if err != nil {
			return err
		}
		profile.PoAGranted = granted
		return nil
	})
	g.Go(func() error {
		received, err := a.gateway.PoAAsRepresentative(ctx, rnokpp)
		if err != nil {
			return err
		}
		profile.PoAReceived = received
		return nil
	})
	g.Go(func() error {
		family, err := a.gateway.FamilyLinks(ctx, rnokpp)
		if err != nil {
			return err
		}
		profile.Family = family
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return profile, nil
}

// FamilyWealthAggregate walks the family graph breadth-first up to depth
// hops from the root and sums wealth facts across the circle. The visited
// set makes cyclic structures (spouse links, shared children) terminate and
// keeps every member counted once.
func (a *Aggregator) FamilyWealthAggregate(ctx context.Context, root id.RNOKPP, depth int) (*FamilyWealth, error) {
	if depth <= 0 {
		depth = DefaultFamilyDepth
	}
	_, found, err := a.gateway.PersonName(ctx, root)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "person %s not found in registry", root)
	}

	type queued struct {
		rnokpp id.RNOKPP
		depth  int
	}
	visited := map[id.RNOKPP]struct{}{root: {}}
	frontier := []queued{{rnokpp: root, depth: 0}}

	wealth := &FamilyWealth{RootRNOKPP: root, Depth: depth}
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]

		member, err := a.collectMember(ctx, current.rnokpp, current.depth)
		if err != nil {
			return nil, err
		}
		wealth.Members = append(wealth.Members, member)
		wealth.TotalIncome += member.TotalIncome
		wealth.TotalTax += member.TotalTax
		wealth.PropertyCount += member.PropertyCount
		wealth.OrgCount += member.OrgCount

		if current.depth == depth {
			continue
		}
		links, err := a.gateway.FamilyLinks(ctx, current.rnokpp)
		if err != nil {
			return nil, err
		}
		for _, link := range links {
			if _, seen := visited[link.RNOKPP]; seen {
				continue
			}
			visited[link.RNOKPP] = struct{}{}
			frontier = append(frontier, queued{rnokpp: link.RNOKPP, depth: current.depth + 1})
		}
	}

	// BFS order is load-bearing only for the root; the rest sort by id so
	// output does not depend on link insertion order.
	rest := wealth.Members[1:]
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].RNOKPP < rest[j].RNOKPP
	})
	if a.logger != nil {
		a.logger.DebugContext(ctx, "family wealth aggregated",
			"root", root,
			"depth", depth,
			"members", len(wealth.Members))
	}
	return wealth, nil
}

func (a *Aggregator) collectMember(ctx context.Context, rnokpp id.RNOKPP, depth int) (FamilyMember, error) {
	member := FamilyMember{RNOKPP: rnokpp, Depth: depth}
	name, found, err := a.gateway.PersonName(ctx, rnokpp)
	if err != nil {
		return member, err
	}
	if found {
		member.Name = name
	}

	summary, err := a.gateway.IncomeSummary(ctx, rnokpp)
	if err != nil {
		return member, err
	}
	member.TotalIncome = summary.TotalIncome
	member.TotalTax = summary.TotalTax

	properties, err := a.gateway.OwnedProperties(ctx, rnokpp)
	if err != nil {
		return member, err
	}
	member.PropertyCount = len(properties)

	relations, err := a.gateway.EmploymentRelations(ctx, rnokpp)
	if err != nil {
		return member, err
	}
	orgs := make(map[id.EDRPOU]struct{}, len(relations))
	for _, rel := range relations {
		orgs[rel.OrgEDRPOU] = struct{}{}
	}
	member.OrgCount = len(orgs)
	return member, nil
}
