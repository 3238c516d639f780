// Package validate checks stages for data and layout issues and applies the
// fixes it suggests.
package validate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aukilabs/stagekit/models"
	"github.com/aukilabs/stagekit/modules/clip"
	"github.com/aukilabs/stagekit/stagefile"
)

// Severity is how bad a finding is.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Kind identifies the check that produced a finding.
type Kind string

const (
	KindNoClips           Kind = "no_clips"
	KindMissingGroupID    Kind = "missing_group_id"
	KindInvalidClipIndex  Kind = "invalid_clip_index"
	KindObjectOutsideClip Kind = "object_outside_clip"
	KindInvalidMapEvent   Kind = "invalid_map_event"
	KindOverlappingClips  Kind = "overlapping_clips"
	KindEmptyClip         Kind = "empty_clip"
	KindInvalidClipWidth  Kind = "invalid_clip_width"
	KindMissingAsset      Kind = "missing_asset"
	KindHighObjectCount   Kind = "high_object_count"
	KindHighPolygonCount  Kind = "high_polygon_count"
)

// FixAction is a change that resolves a finding.
type FixAction string

const (
	FixSetGroupID     FixAction = "set_group_id"
	FixResetClipIndex FixAction = "reset_clip_index"
	FixReparentObject FixAction = "reparent_object"
	FixWidenClip      FixAction = "widen_clip"
)

// Fix describes how to resolve a finding. It is applied with Apply.
type Fix struct {
	Action FixAction

	// The clip to widen, or the clip an object is moved into.
	ClipIndex int

	ObjectID uint32
}

// Finding is an issue found in a stage.
type Finding struct {
	Kind        Kind
	Severity    Severity
	Title       string
	Description string

	ClipIndex      *int
	OtherClipIndex *int
	ObjectID       *uint32

	// Nil when the finding can't be fixed automatically.
	Fix *Fix
}

// Options customizes validation.
type Options struct {
	// Reports whether the asset at the given bundle path exists. Missing asset
	// checks are skipped when nil.
	AssetExists func(path string) bool

	// The number of objects above which a clip is reported. 0 means 100.
	MaxObjectsPerClip int

	// The number of triangles above which an object is reported. 0 means
	// 1000.
	MaxTriangles int
}

func (o Options) maxObjectsPerClip() int {
	if o.MaxObjectsPerClip <= 0 {
		return 100
	}
	return o.MaxObjectsPerClip
}

func (o Options) maxTriangles() int {
	if o.MaxTriangles <= 0 {
		return 1000
	}
	return o.MaxTriangles
}

// Validate runs every check against the stage and returns the findings in a
// stable order: stage, clips, clip pairs, then objects in clip order.
func Validate(s *models.Stage, opts Options) []Finding {
	var findings []Finding

	if len(s.Clips) == 0 {
		findings = append(findings, Finding{
			Kind:        KindNoClips,
			Severity:    SeverityWarning,
			Title:       "No clips",
			Description: "The stage has no clips.",
		})
	}

	for i, c := range s.Clips {
		findings = append(findings, checkClip(s, i, c, opts)...)
	}

	for _, pair := range clip.Overlaps(s.Clips) {
		a, b := pair[0], pair[1]
		findings = append(findings, Finding{
			Kind:     KindOverlappingClips,
			Severity: SeverityWarning,
			Title:    "Overlapping clips",
			Description: fmt.Sprintf("Clip %d [%s, %s] overlaps clip %d [%s, %s].",
				a, stagefile.FormatBound(s.Clips[a].MinX), stagefile.FormatBound(s.Clips[a].MaxX),
				b, stagefile.FormatBound(s.Clips[b].MinX), stagefile.FormatBound(s.Clips[b].MaxX)),
			ClipIndex:      intPtr(a),
			OtherClipIndex: intPtr(b),
		})
	}

	for _, c := range s.Clips {
		for _, o := range c.Objects {
			findings = append(findings, checkObject(s, o, opts)...)
		}
	}
	return findings
}

func checkClip(s *models.Stage, i int, c models.Clip, opts Options) []Finding {
	var findings []Finding

	if !clip.IsValid(c) {
		findings = append(findings, Finding{
			Kind:     KindInvalidClipWidth,
			Severity: SeverityError,
			Title:    "Invalid clip width",
			Description: fmt.Sprintf("Clip %d max x %s is not greater than its min x %s.",
				i, stagefile.FormatBound(c.MaxX), stagefile.FormatBound(c.MinX)),
			ClipIndex: intPtr(i),
			Fix: &Fix{
				Action:    FixWidenClip,
				ClipIndex: i,
			},
		})
	}

	if len(c.Objects) == 0 {
		findings = append(findings, Finding{
			Kind:        KindEmptyClip,
			Severity:    SeverityInfo,
			Title:       "Empty clip",
			Description: fmt.Sprintf("Clip %d has no objects.", i),
			ClipIndex:   intPtr(i),
		})
	}

	if n := len(s.ObjectsInClip(i)); n > opts.maxObjectsPerClip() {
		findings = append(findings, Finding{
			Kind:        KindHighObjectCount,
			Severity:    SeverityWarning,
			Title:       "High object count",
			Description: fmt.Sprintf("Clip %d has %d objects.", i, n),
			ClipIndex:   intPtr(i),
		})
	}
	return findings
}

func checkObject(s *models.Stage, o models.StageObject, opts Options) []Finding {
	var findings []Finding

	if o.GroupID == "" {
		findings = append(findings, Finding{
			Kind:        KindMissingGroupID,
			Severity:    SeverityWarning,
			Title:       "Missing group ID",
			Description: fmt.Sprintf("Object %q has no group ID.", o.Name),
			ObjectID:    uint32Ptr(o.ID),
			Fix: &Fix{
				Action:   FixSetGroupID,
				ObjectID: o.ID,
			},
		})
	}

	if o.ClipIndex < 0 || o.ClipIndex >= len(s.Clips) {
		finding := Finding{
			Kind:     KindInvalidClipIndex,
			Severity: SeverityError,
			Title:    "Invalid clip index",
			Description: fmt.Sprintf("Object %q refers to clip %d but the stage has %d clips.",
				o.Name, o.ClipIndex, len(s.Clips)),
			ObjectID: uint32Ptr(o.ID),
		}
		if len(s.Clips) != 0 {
			finding.Fix = &Fix{
				Action:   FixResetClipIndex,
				ObjectID: o.ID,
			}
		}
		findings = append(findings, finding)
	} else if !clip.ContainsPoint(s.Clips[o.ClipIndex], o.Position()) {
		finding := Finding{
			Kind:     KindObjectOutsideClip,
			Severity: SeverityWarning,
			Title:    "Object outside of its clip",
			Description: fmt.Sprintf("Object %q at x %s is not inside clip %d.",
				o.Name, stagefile.FormatBound(o.Position().X), o.ClipIndex),
			ClipIndex: intPtr(o.ClipIndex),
			ObjectID:  uint32Ptr(o.ID),
		}
		if owner, ok := clip.FindOwningClip(s.Clips, o.Position()); ok {
			finding.OtherClipIndex = intPtr(owner)
			finding.Fix = &Fix{
				Action:    FixReparentObject,
				ClipIndex: owner,
				ObjectID:  o.ID,
			}
		}
		findings = append(findings, finding)
	}

	if stagefile.IsMapEventObject(o.Name) {
		if _, err := stagefile.ParseMapEvent(o.Property); err != nil {
			findings = append(findings, Finding{
				Kind:        KindInvalidMapEvent,
				Severity:    SeverityError,
				Title:       "Invalid map event",
				Description: fmt.Sprintf("Object %q has an invalid map event property: %s", o.Name, err),
				ObjectID:    uint32Ptr(o.ID),
			})
		}
	}

	if opts.AssetExists != nil && o.BundlePath != "" && !opts.AssetExists(o.BundlePath) {
		findings = append(findings, Finding{
			Kind:        KindMissingAsset,
			Severity:    SeverityError,
			Title:       "Missing asset",
			Description: fmt.Sprintf("Object %q refers to the missing asset %q.", o.Name, o.BundlePath),
			ObjectID:    uint32Ptr(o.ID),
		})
	}

	if n := o.Geometry.TriangleCount; n > opts.maxTriangles() {
		findings = append(findings, Finding{
			Kind:        KindHighPolygonCount,
			Severity:    SeverityInfo,
			Title:       "High polygon count",
			Description: fmt.Sprintf("Object %q has %d triangles.", o.Name, n),
			ObjectID:    uint32Ptr(o.ID),
		})
	}
	return findings
}

// Apply applies the fixes of the given findings in order. Fixes whose target
// no longer exists or no longer needs fixing are skipped. It returns the
// number of applied fixes.
func Apply(s *models.Stage, findings []Finding) int {
	applied := 0

	for _, f := range findings {
		if f.Fix != nil && apply(s, *f.Fix) {
			applied++
		}
	}
	return applied
}

func apply(s *models.Stage, fix Fix) bool {
	switch fix.Action {
	case FixSetGroupID:
		o, ok := s.Object(fix.ObjectID)
		if !ok || o.GroupID != "" {
			return false
		}
		return s.UpdateObject(fix.ObjectID, func(o *models.StageObject) {
			o.GroupID = models.DefaultGroupID
		}) == nil

	case FixResetClipIndex:
		o, ok := s.Object(fix.ObjectID)
		if !ok || (o.ClipIndex >= 0 && o.ClipIndex < len(s.Clips)) {
			return false
		}
		return s.MoveObject(fix.ObjectID, 0) == nil

	case FixReparentObject:
		o, ok := s.Object(fix.ObjectID)
		if !ok || fix.ClipIndex < 0 || fix.ClipIndex >= len(s.Clips) {
			return false
		}
		if o.ClipIndex == fix.ClipIndex || !clip.ContainsPoint(s.Clips[fix.ClipIndex], o.Position()) {
			return false
		}
		return s.MoveObject(fix.ObjectID, fix.ClipIndex) == nil

	case FixWidenClip:
		if fix.ClipIndex < 0 || fix.ClipIndex >= len(s.Clips) || clip.IsValid(s.Clips[fix.ClipIndex]) {
			return false
		}
		s.Clips[fix.ClipIndex] = clip.FixWidth(s.Clips[fix.ClipIndex])
		return true

	default:
		return false
	}
}

// Count returns the number of findings per severity.
func Count(findings []Finding) map[Severity]int {
	counts := make(map[Severity]int)
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}

// HasErrors reports whether a finding has the error severity.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// DirAssetExists returns an asset resolver that looks for bundle paths under
// root.
func DirAssetExists(root string) func(string) bool {
	return func(path string) bool {
		_, err := os.Stat(filepath.Join(root, filepath.FromSlash(path)))
		return err == nil
	}
}

func intPtr(v int) *int {
	return &v
}

func uint32Ptr(v uint32) *uint32 {
	return &v
}
