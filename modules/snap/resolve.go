package snap

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	ErrTypeUnknownMode = "unknown-snap-mode"
)

// Mode is a way of snapping a point.
type Mode string

const (
	// Runs the drag release pipeline described by a Config.
	ModeAuto Mode = "auto"

	ModeGrid   Mode = "grid"
	ModeObject Mode = "object"
	ModeVertex Mode = "vertex"
	ModeEdge   Mode = "edge"
	ModeFace   Mode = "face"
	ModeGround Mode = "ground"
)

// ParseMode returns the mode named s. An empty name is ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeGrid, ModeObject, ModeVertex, ModeEdge, ModeFace, ModeGround:
		return m, nil
	default:
		return "", errors.New("unknown snap mode").
			WithType(ErrTypeUnknownMode).
			WithTag("mode", s)
	}
}

// Config describes how points are snapped when an object is released.
type Config struct {
	// The size of grid cells.
	GridSize float64

	// Snaps to the grid before snapping to geometry.
	SnapToGrid bool

	// The distance under which a point is snapped to geometry.
	SnapDistance float64

	SnapToVertices bool
	SnapToEdges    bool
	SnapToFaces    bool
}

// DefaultConfig returns the configuration used when editors do not provide
// one.
func DefaultConfig() Config {
	return Config{
		GridSize:       1,
		SnapToGrid:     true,
		SnapDistance:   0.5,
		SnapToVertices: true,
		SnapToEdges:    true,
		SnapToFaces:    true,
	}
}

// Step is a snap that moved a point.
type Step struct {
	Mode Mode
	From r3.Vec
	To   r3.Vec
}

// Result is the outcome of Resolve.
type Result struct {
	Position r3.Vec
	Steps    []Step
}

// Snapped reports whether the point moved.
func (r Result) Snapped() bool {
	return len(r.Steps) != 0
}

// Resolve snaps p the way it is snapped when an object is released: to the
// grid when enabled, then to vertices, edges and faces in that order. Each
// geometry snap starts from the result of the previous one and is kept only
// when it moves the point by less than the snap distance.
func Resolve(p r3.Vec, candidates []Candidate, cfg Config) Result {
	res := Result{Position: p}

	apply := func(mode Mode, to r3.Vec) {
		if to == res.Position {
			return
		}
		res.Steps = append(res.Steps, Step{
			Mode: mode,
			From: res.Position,
			To:   to,
		})
		res.Position = to
	}

	if cfg.SnapToGrid {
		apply(ModeGrid, SnapToGrid(res.Position, cfg.GridSize))
	}
	if cfg.SnapToVertices {
		apply(ModeVertex, SnapToVertices(res.Position, candidates, cfg.SnapDistance))
	}
	if cfg.SnapToEdges {
		apply(ModeEdge, SnapToEdges(res.Position, candidates, cfg.SnapDistance))
	}
	if cfg.SnapToFaces {
		apply(ModeFace, SnapToFaces(res.Position, candidates, cfg.SnapDistance))
	}
	return res
}

// Snap snaps p with a single mode. Distance based modes use the snap
// distance of cfg and the grid mode its grid size.
func Snap(mode Mode, p r3.Vec, candidates []Candidate, cfg Config) (Result, error) {
	var to r3.Vec

	switch mode {
	case ModeAuto:
		return Resolve(p, candidates, cfg), nil
	case ModeGrid:
		to = SnapToGrid(p, cfg.GridSize)
	case ModeObject:
		to = SnapToNearestObject(p, candidates, cfg.SnapDistance)
	case ModeVertex:
		to = SnapToVertices(p, candidates, cfg.SnapDistance)
	case ModeEdge:
		to = SnapToEdges(p, candidates, cfg.SnapDistance)
	case ModeFace:
		to = SnapToFaces(p, candidates, cfg.SnapDistance)
	case ModeGround:
		to = SnapToGround(p, candidates)
	default:
		return Result{}, errors.New("unknown snap mode").
			WithType(ErrTypeUnknownMode).
			WithTag("mode", mode)
	}

	res := Result{Position: to}
	if to != p {
		res.Steps = []Step{{Mode: mode, From: p, To: to}}
	}
	return res, nil
}
