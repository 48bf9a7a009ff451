package models

// ActivityType names a kind of gamified interaction recorded in the ledger.
type ActivityType string

// Known activity types.
const (
	ActivityAddAsset                ActivityType = "add_asset"
	ActivityExportWhiteboard        ActivityType = "export_whiteboard"
	ActivityViewAsset               ActivityType = "view_asset"
	ActivityGetViewAsset            ActivityType = "get_view_asset"
	ActivityLike                    ActivityType = "like"
	ActivityGetLike                 ActivityType = "get_like"
	ActivityDislike                 ActivityType = "dislike"
	ActivityGetDislike              ActivityType = "get_dislike"
	ActivityAssetComment            ActivityType = "asset_comment"
	ActivityGetAssetComment         ActivityType = "get_asset_comment"
	ActivityGetAssetCommentReply    ActivityType = "get_asset_comment_reply"
	ActivityPinAsset                ActivityType = "pin_asset"
	ActivityGetPinAsset             ActivityType = "get_pin_asset"
	ActivityRepinAsset              ActivityType = "repin_asset"
	ActivityGetRepinAsset           ActivityType = "get_repin_asset"
	ActivityRemixWhiteboard         ActivityType = "remix_whiteboard"
	ActivityGetRemixWhiteboard      ActivityType = "get_remix_whiteboard"
	ActivitySubmitAssignment        ActivityType = "submit_assignment"
	ActivityDiscussionTopic         ActivityType = "discussion_topic"
	ActivityDiscussionEntry         ActivityType = "discussion_entry"
	ActivityGetDiscussionEntryReply ActivityType = "get_discussion_entry_reply"
)

// ObjectType names the kind of entity an activity references.
type ObjectType string

// Known object types.
const (
	ObjectAsset            ObjectType = "asset"
	ObjectComment          ObjectType = "comment"
	ObjectWhiteboard       ObjectType = "whiteboard"
	ObjectCanvasDiscussion ObjectType = "canvas_discussion"
	ObjectCanvasSubmission ObjectType = "canvas_submission"
)
