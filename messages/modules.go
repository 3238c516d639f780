package messages

import "github.com/aukilabs/stagekit/models"

// SnapConfig is the snapping configuration sent by editors.
type SnapConfig struct {
	GridSize       float64 `json:"grid_size"`
	SnapToGrid     bool    `json:"snap_to_grid"`
	SnapDistance   float64 `json:"snap_distance"`
	SnapToVertices bool    `json:"snap_to_vertices"`
	SnapToEdges    bool    `json:"snap_to_edges"`
	SnapToFaces    bool    `json:"snap_to_faces"`
}

// Candidate is snapping geometry provided with a request.
type Candidate struct {
	Origin   models.Vec3   `json:"origin"`
	Vertices []models.Vec3 `json:"vertices,omitempty"`
	Renderer *Box          `json:"renderer,omitempty"`
	Collider *Box          `json:"collider,omitempty"`
}

type SnapRequest struct {
	// The snap mode. Empty runs the drag release pipeline.
	Mode     string      `json:"mode,omitempty"`
	Position models.Vec3 `json:"position"`

	// Objects of the stage ignored as targets, usually the dragged one.
	ExcludeObjectIDs []uint32 `json:"exclude_object_ids,omitempty"`

	// Extra targets in addition to the stage objects.
	Candidates []Candidate `json:"candidates,omitempty"`

	// Overrides the server snapping configuration.
	Config *SnapConfig `json:"config,omitempty"`
}

type SnapStep struct {
	Mode string      `json:"mode"`
	From models.Vec3 `json:"from"`
	To   models.Vec3 `json:"to"`
}

type SnapResponse struct {
	Position models.Vec3 `json:"position"`
	Snapped  bool        `json:"snapped"`
	Steps    []SnapStep  `json:"steps,omitempty"`
}

// Clip is the wire form of a clip.
type Clip struct {
	Index       int     `json:"index"`
	MinX        float64 `json:"min_x"`
	MaxX        float64 `json:"max_x"`
	MinY        float64 `json:"min_y"`
	MaxY        float64 `json:"max_y"`
	MinZ        float64 `json:"min_z"`
	MaxZ        float64 `json:"max_z"`
	ObjectCount int     `json:"object_count"`
	Valid       bool    `json:"valid"`
}

type ClipAddResponse struct {
	Clip Clip `json:"clip"`
}

type ClipRemoveRequest struct {
	ClipIndex int `json:"clip_index"`
}

type ClipOwnerRequest struct {
	Position models.Vec3 `json:"position"`
}

type ClipOwnerResponse struct {
	Found     bool `json:"found"`
	ClipIndex int  `json:"clip_index"`
}

type ClipFitRequest struct {
	ClipIndex int `json:"clip_index"`
}

type ClipFitResponse struct {
	Clip Clip `json:"clip"`
}

type ClipOverlapsResponse struct {
	Pairs [][2]int `json:"pairs"`
}

type ClipRegionRequest struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
}

type ClipRegionResponse struct {
	Clips []Clip `json:"clips"`
}

type ClipDebugResponse struct {
	Resolution  float64 `json:"resolution"`
	CellCount   int     `json:"cell_count"`
	ClipCount   int     `json:"clip_count"`
	LinearCount int     `json:"linear_count"`
	MinX        float64 `json:"min_x"`
	MaxX        float64 `json:"max_x"`
	Occupancy   []int   `json:"occupancy"`
}

// Finding is the wire form of a validation finding.
type Finding struct {
	Kind           string  `json:"kind"`
	Severity       string  `json:"severity"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	ClipIndex      *int    `json:"clip_index,omitempty"`
	OtherClipIndex *int    `json:"other_clip_index,omitempty"`
	ObjectID       *uint32 `json:"object_id,omitempty"`
	Fix            string  `json:"fix,omitempty"`
}

type ValidateResponse struct {
	Findings []Finding `json:"findings"`
	Errors   int       `json:"errors"`
	Warnings int       `json:"warnings"`
	Infos    int       `json:"infos"`
}

type FixRequest struct {
	// Restricts fixes to the given finding kinds. Empty applies every fix.
	Kinds []string `json:"kinds,omitempty"`
}

type FixResponse struct {
	Applied  int       `json:"applied"`
	Findings []Finding `json:"findings"`
}

type BatchRequest struct {
	Op        string   `json:"op"`
	ObjectIDs []uint32 `json:"object_ids,omitempty"`
	Axis      string   `json:"axis,omitempty"`
	GroupID   string   `json:"group_id,omitempty"`
	ClipIndex *int     `json:"clip_index,omitempty"`
	CellSize  float64  `json:"cell_size,omitempty"`
}

type BatchResponse struct {
	Affected  int          `json:"affected"`
	ObjectIDs []uint32     `json:"object_ids,omitempty"`
	GroupID   string       `json:"group_id,omitempty"`
	Centroid  *models.Vec3 `json:"centroid,omitempty"`
}
