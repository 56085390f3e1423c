package adapters

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"delivery-verification/internal/core/config"
	"delivery-verification/internal/core/httpclient"
	"delivery-verification/internal/core/logger"
	"delivery-verification/internal/core/proxy"
	"delivery-verification/internal/features/routes/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Data element UIDs carrying route planning information in DHIS2.
const (
	routeIDElement      = "kLPeW2Yx9Zy"
	routeDetailsElement = "nBv8JxPq1Rs"
	routeStatusElement  = "pYzQ3Wm8Ktx"
	vehicleTypeElement  = "mXc7V2Np5Wq"
)

// DHIS2RouteSource implements ports.RouteSource against the DHIS2
// dataValueSets API. Planned routes are published as data values whose
// payload is a JSON route description.
type DHIS2RouteSource struct {
	// client is the HTTP client used for API requests.
	client *http.Client
	// config holds the DHIS2 connection details.
	config config.RemoteConfig
	// now supplies the current time for period resolution.
	now func() time.Time
}

// NewDHIS2RouteSource creates a new DHIS2RouteSource.
func NewDHIS2RouteSource(cfg config.RemoteConfig) *DHIS2RouteSource {
	settings, err := proxy.FromURL(cfg.ProxyURL)
	if err != nil {
		logger.Get().Warn("Ignoring invalid proxy URL", zap.Error(err))
		settings = proxy.Settings{}
	}

	client, err := httpclient.NewClientWithProxy(cfg.Timeout, settings)
	if err != nil {
		logger.Get().Warn("Falling back to direct connection", zap.Error(err))
		client = httpclient.NewClient(cfg.Timeout)
	}

	return &DHIS2RouteSource{
		client: client,
		config: cfg,
		now:    time.Now,
	}
}

// FetchRoutes retrieves the routes planned for the current monthly period.
// Data values that fail to parse are skipped so one malformed route does not
// block the rest of the plan.
func (s *DHIS2RouteSource) FetchRoutes(ctx context.Context) ([]domain.Route, error) {
	period := s.now().UTC().Format("200601")

	query := url.Values{}
	query.Set("dataElement", fmt.Sprintf("%s,%s,%s,%s",
		routeIDElement, routeDetailsElement, routeStatusElement, vehicleTypeElement))
	query.Set("period", period)
	query.Set("orgUnitMode", "ACCESSIBLE")
	query.Set("children", "true")

	reqURL := fmt.Sprintf("%s/api/dataValueSets?%s", s.config.URL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	authVal := make([]byte, 0, len(s.config.Username)+len(s.config.Password)+1)
	authVal = fmt.Appendf(authVal, "%s:%s", s.config.Username, s.config.Password)
	req.Header.Add("Authorization", "Basic "+base64.StdEncoding.EncodeToString(authVal))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dataValueSets API returned status: %d", resp.StatusCode)
	}

	var body dataValueSetsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	routes := make([]domain.Route, 0)
	for _, dv := range body.DataValues {
		if dv.DataElement != routeDetailsElement {
			continue
		}

		route, err := parseRouteDetails(dv.Value)
		if err != nil {
			logger.Get().Warn("Skipping unparseable route data value",
				zap.String("org_unit", dv.OrgUnit), zap.Error(err))
			continue
		}
		routes = append(routes, *route)
	}

	return routes, nil
}

// parseRouteDetails maps one route-details JSON payload to a domain Route.
// The planning route id doubles as the local id so repeated imports resolve
// to the same record.
func parseRouteDetails(value string) (*domain.Route, error) {
	var details routeDetails
	if err := json.Unmarshal([]byte(value), &details); err != nil {
		return nil, fmt.Errorf("failed to parse route details: %w", err)
	}
	if details.RouteID == "" {
		return nil, fmt.Errorf("route details missing route_id")
	}

	route := &domain.Route{
		ID:            details.RouteID,
		RouteRef:      details.RouteID,
		VehicleType:   details.VehicleType,
		TotalStops:    details.TotalStops,
		TotalDistance: details.TotalDistance,
		TotalVolume:   details.TotalVolume,
		TotalWeight:   details.TotalWeight,
		Status:        domain.RouteStatusPending,
		SyncStatus:    domain.SyncStatusSynced,
		CreatedAt:     time.Now().UTC(),
		Deliveries:    make([]domain.Delivery, 0, len(details.Stops)),
	}

	for _, stop := range details.Stops {
		route.Deliveries = append(route.Deliveries, domain.Delivery{
			ID:                   uuid.NewString(),
			RouteID:              route.ID,
			FacilityID:           stop.FacilityID,
			FacilityName:         stop.FacilityName,
			Latitude:             stop.Latitude,
			Longitude:            stop.Longitude,
			OrderVolume:          stop.OrderVolume,
			OrderWeight:          stop.OrderWeight,
			StopNumber:           stop.StopNumber,
			DistanceFromPrevious: stop.DistanceFromPrevious,
			Status:               domain.DeliveryStatusPending,
			SyncStatus:           domain.SyncStatusSynced,
		})
	}

	return route, nil
}

// internal structs for mapping

// dataValueSetsResponse is the envelope of the DHIS2 dataValueSets API.
type dataValueSetsResponse struct {
	// DataValues are the individual stored values.
	DataValues []dataValue `json:"dataValues"`
}

// dataValue is one stored value of a data element for a period and org unit.
type dataValue struct {
	// DataElement is the UID of the data element.
	DataElement string `json:"dataElement"`
	// Period is the reporting period the value belongs to.
	Period string `json:"period"`
	// OrgUnit is the organisation unit the value was stored for.
	OrgUnit string `json:"orgUnit"`
	// Value is the raw stored value.
	Value string `json:"value"`
}

// routeDetails is the JSON payload published by the route planner.
type routeDetails struct {
	// RouteID is the planning identifier of the route.
	RouteID string `json:"route_id"`
	// VehicleType is the assigned vehicle class.
	VehicleType string `json:"vehicle_type"`
	// TotalStops is the number of planned stops.
	TotalStops int `json:"total_stops"`
	// TotalDistance is the planned route length in meters.
	TotalDistance float64 `json:"total_distance"`
	// TotalVolume is the total cargo volume of the route.
	TotalVolume float64 `json:"total_volume"`
	// TotalWeight is the total cargo weight of the route.
	TotalWeight float64 `json:"total_weight"`
	// Stops are the planned stops in traversal order.
	Stops []routeStop `json:"stops"`
}

// routeStop is one planned stop of a route.
type routeStop struct {
	// FacilityID identifies the destination facility.
	FacilityID string `json:"facility_id"`
	// FacilityName is the display name of the facility.
	FacilityName string `json:"facility_name"`
	// Latitude of the facility.
	Latitude float64 `json:"latitude"`
	// Longitude of the facility.
	Longitude float64 `json:"longitude"`
	// OrderVolume is the cargo volume to drop at the stop.
	OrderVolume float64 `json:"order_volume"`
	// OrderWeight is the cargo weight to drop at the stop.
	OrderWeight float64 `json:"order_weight"`
	// StopNumber is the 1-based position in the traversal order.
	StopNumber int `json:"stop_number"`
	// DistanceFromPrevious is the planned distance from the previous stop.
	DistanceFromPrevious float64 `json:"distance_from_previous"`
}
