package messages

const (
	MsgTypeErrorResponse MsgType = "error_response"

	MsgTypePingRequest  MsgType = "ping_request"
	MsgTypePingResponse MsgType = "ping_response"

	MsgTypeStageOpenRequest     MsgType = "stage_open_request"
	MsgTypeStageOpenResponse    MsgType = "stage_open_response"
	MsgTypeStageLoadRequest     MsgType = "stage_load_request"
	MsgTypeStageLoadResponse    MsgType = "stage_load_response"
	MsgTypeStageExportRequest   MsgType = "stage_export_request"
	MsgTypeStageExportResponse  MsgType = "stage_export_response"
	MsgTypeStageLoadBroadcast   MsgType = "stage_load_broadcast"
	MsgTypeStageUpdateBroadcast MsgType = "stage_update_broadcast"

	MsgTypeObjectAddRequest      MsgType = "object_add_request"
	MsgTypeObjectAddResponse     MsgType = "object_add_response"
	MsgTypeObjectUpdateRequest   MsgType = "object_update_request"
	MsgTypeObjectUpdateResponse  MsgType = "object_update_response"
	MsgTypeObjectGeometryUpdate  MsgType = "object_geometry_update"
	MsgTypeObjectDeleteRequest   MsgType = "object_delete_request"
	MsgTypeObjectDeleteResponse  MsgType = "object_delete_response"
	MsgTypeObjectListRequest     MsgType = "object_list_request"
	MsgTypeObjectListResponse    MsgType = "object_list_response"
	MsgTypeObjectAddBroadcast    MsgType = "object_add_broadcast"
	MsgTypeObjectUpdateBroadcast MsgType = "object_update_broadcast"
	MsgTypeObjectDeleteBroadcast MsgType = "object_delete_broadcast"

	MsgTypeSnapRequest  MsgType = "snap_request"
	MsgTypeSnapResponse MsgType = "snap_response"

	MsgTypeClipAddRequest       MsgType = "clip_add_request"
	MsgTypeClipAddResponse      MsgType = "clip_add_response"
	MsgTypeClipRemoveRequest    MsgType = "clip_remove_request"
	MsgTypeClipRemoveResponse   MsgType = "clip_remove_response"
	MsgTypeClipOwnerRequest     MsgType = "clip_owner_request"
	MsgTypeClipOwnerResponse    MsgType = "clip_owner_response"
	MsgTypeClipFitRequest       MsgType = "clip_fit_request"
	MsgTypeClipFitResponse      MsgType = "clip_fit_response"
	MsgTypeClipOverlapsRequest  MsgType = "clip_overlaps_request"
	MsgTypeClipOverlapsResponse MsgType = "clip_overlaps_response"
	MsgTypeClipRegionRequest    MsgType = "clip_region_request"
	MsgTypeClipRegionResponse   MsgType = "clip_region_response"
	MsgTypeClipDebugRequest     MsgType = "clip_debug_request"
	MsgTypeClipDebugResponse    MsgType = "clip_debug_response"
	MsgTypeClipUpdateBroadcast  MsgType = "clip_update_broadcast"

	MsgTypeValidateRequest  MsgType = "validate_request"
	MsgTypeValidateResponse MsgType = "validate_response"
	MsgTypeFixRequest       MsgType = "fix_request"
	MsgTypeFixResponse      MsgType = "fix_response"

	MsgTypeBatchRequest  MsgType = "batch_request"
	MsgTypeBatchResponse MsgType = "batch_response"
)

// ErrorCode describes why a request failed.
type ErrorCode string

const (
	ErrorCodeBadRequest           ErrorCode = "bad_request"
	ErrorCodeNotFound             ErrorCode = "not_found"
	ErrorCodeSessionAlreadyOpened ErrorCode = "session_already_opened"
	ErrorCodeSessionNotOpened     ErrorCode = "session_not_opened"
	ErrorCodeDisabled             ErrorCode = "disabled"
	ErrorCodeInternalServerError  ErrorCode = "internal_server_error"
)

type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message,omitempty"`
}
