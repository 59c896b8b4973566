package signal

import (
	"context"

	"github.com/sells-group/billboard-signals/internal/model"
	"github.com/sells-group/billboard-signals/pkg/denue"
	"github.com/sells-group/billboard-signals/pkg/tomtom"
)

// RegistryRadiusMeters is the business-registry search radius. Changing it
// requires bumping model.DemographicVersion.
const RegistryRadiusMeters = 500

// TrafficProvider returns a live traffic-flow sample for the road nearest
// a point. Implementations return tomtom.ErrNoSegment (or any error) when
// no sample exists.
type TrafficProvider interface {
	FlowSample(ctx context.Context, lat, lon float64) (*model.TrafficSample, error)
}

// BusinessProvider lists registered businesses within radiusMeters of a
// point. An empty slice is a valid answer.
type BusinessProvider interface {
	Nearby(ctx context.Context, lat, lon float64, radiusMeters int) ([]model.BusinessRecord, error)
}

// TomTomTraffic adapts a TomTom flow client to TrafficProvider.
type TomTomTraffic struct {
	Client tomtom.Client
}

func (p *TomTomTraffic) FlowSample(ctx context.Context, lat, lon float64) (*model.TrafficSample, error) {
	seg, err := p.Client.FlowSegment(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	return &model.TrafficSample{
		CurrentSpeedKmh:     seg.CurrentSpeed,
		FreeFlowSpeedKmh:    seg.FreeFlowSpeed,
		Confidence:          seg.Confidence,
		FunctionalRoadClass: seg.FRC,
		RoadClosure:         seg.RoadClosure,
	}, nil
}

// DENUEBusinesses adapts a DENUE client to BusinessProvider.
type DENUEBusinesses struct {
	Client denue.Client
}

func (p *DENUEBusinesses) Nearby(ctx context.Context, lat, lon float64, radiusMeters int) ([]model.BusinessRecord, error) {
	found, err := p.Client.Search(ctx, lat, lon, radiusMeters)
	if err != nil {
		return nil, err
	}
	out := make([]model.BusinessRecord, 0, len(found))
	for _, e := range found {
		out = append(out, model.BusinessRecord{
			Name:               e.Name,
			SectorCode:         e.SCIAN(),
			EmployeeRangeLabel: e.Stratum,
		})
	}
	return out, nil
}
