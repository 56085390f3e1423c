package domain

// Data element UIDs of the verification program stage.
const (
	ElementOrderVolume        = "ORDER_VOLUME_DE"
	ElementOrderWeight        = "ORDER_WEIGHT_DE"
	ElementActualVolume       = "ACTUAL_VOLUME_DE"
	ElementActualWeight       = "ACTUAL_WEIGHT_DE"
	ElementGPSLatitude        = "GPS_LATITUDE_DE"
	ElementGPSLongitude       = "GPS_LONGITUDE_DE"
	ElementGPSAccuracy        = "GPS_ACCURACY_DE"
	ElementDistanceFromTarget = "DISTANCE_FROM_TARGET_DE"
	ElementTimestamp          = "VERIFICATION_TIMESTAMP_DE"
	ElementComments           = "COMMENTS_DE"
	ElementSignature          = "SIGNATURE_DE"
	ElementPhoto              = "PHOTO_DE"
)

// EventStatusCompleted marks a pushed event as final on the remote side.
const EventStatusCompleted = "COMPLETED"

// Event is one verification translated to the remote events API shape.
type Event struct {
	// Program is the remote program UID.
	Program string `json:"program"`
	// ProgramStage is the remote program stage UID.
	ProgramStage string `json:"programStage"`
	// OrgUnit is the facility the event is registered against.
	OrgUnit string `json:"orgUnit"`
	// EventDate is the capture date, formatted yyyy-MM-dd.
	EventDate string `json:"eventDate"`
	// Status is the remote lifecycle status of the event.
	Status string `json:"status"`
	// Coordinate is the capture position.
	Coordinate *Coordinate `json:"coordinate,omitempty"`
	// DataValues carry the evidence fields.
	DataValues []DataValue `json:"dataValues"`
}

// Coordinate is a geographic position attached to an event.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DataValue is one data element value of an event.
type DataValue struct {
	DataElement string `json:"dataElement"`
	Value       string `json:"value"`
}

// Session is an explicit authenticated context against the remote system.
// It is passed to every remote call; nothing reads credentials ambiently.
type Session struct {
	// BaseURL is the root URL of the remote server.
	BaseURL string
	// Username is the API username.
	Username string
	// Password is the API password.
	Password string
}
