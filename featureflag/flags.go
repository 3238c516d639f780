package featureflag

type Flag string

const (
	FlagDisableVertexSnap      Flag = "DISABLE_VERTEX_SNAP"
	FlagDisableEdgeSnap        Flag = "DISABLE_EDGE_SNAP"
	FlagDisableFaceSnap        Flag = "DISABLE_FACE_SNAP"
	FlagDisableAutoFix         Flag = "DISABLE_AUTO_FIX"
	FlagDisableLegacyDocuments Flag = "DISABLE_LEGACY_DOCUMENTS"
)

var knownFlags = []Flag{
	FlagDisableVertexSnap,
	FlagDisableEdgeSnap,
	FlagDisableFaceSnap,
	FlagDisableAutoFix,
	FlagDisableLegacyDocuments,
}
