package model

// AttachmentUpload is a file staged for upload with a new comment or reply.
type AttachmentUpload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// CommentDraft is the payload for creating a comment or reply. Guest fields
// and the captcha pair are required only when no credential is held.
type CommentDraft struct {
	Text         string
	GuestName    string
	GuestEmail   string
	CaptchaKey   string
	CaptchaValue string
	Attachments  []AttachmentUpload
}

// HasAttachments reports whether the draft must be sent as multipart.
func (d CommentDraft) HasAttachments() bool {
	return len(d.Attachments) > 0
}
