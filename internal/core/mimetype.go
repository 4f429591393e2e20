package core

import (
	"mime"
	"strings"
)

// MimeType is a media type accepted by the generation API.
type MimeType string

const (
	MimeTypeImagePNG  MimeType = "image/png"
	MimeTypeImageJPEG MimeType = "image/jpeg"
	MimeTypeImageWEBP MimeType = "image/webp"
	MimeTypeImageHEIC MimeType = "image/heic"
	MimeTypeImageHEIF MimeType = "image/heif"

	MimeTypeVideoMP4  MimeType = "video/mp4"
	MimeTypeVideoMPEG MimeType = "video/mpeg"
	MimeTypeVideoMOV  MimeType = "video/mov"
	MimeTypeVideoAVI  MimeType = "video/avi"
	MimeTypeVideoFLV  MimeType = "video/x-flv"
	MimeTypeVideoMPG  MimeType = "video/mpg"
	MimeTypeVideoWEBM MimeType = "video/webm"
	MimeTypeVideoWMV  MimeType = "video/wmv"
	MimeTypeVideo3GPP MimeType = "video/3gpp"

	MimeTypeAudioWAV  MimeType = "audio/wav"
	MimeTypeAudioMP3  MimeType = "audio/mp3"
	MimeTypeAudioAIFF MimeType = "audio/aiff"
	MimeTypeAudioAAC  MimeType = "audio/aac"
	MimeTypeAudioOGG  MimeType = "audio/ogg"
	MimeTypeAudioFLAC MimeType = "audio/flac"

	MimeTypeTextPlain      MimeType = "text/plain"
	MimeTypeTextHTML       MimeType = "text/html"
	MimeTypeTextCSS        MimeType = "text/css"
	MimeTypeTextJavaScript MimeType = "text/javascript"
	MimeTypeAppJavaScript  MimeType = "application/x-javascript"
	MimeTypeTextTypeScript MimeType = "text/x-typescript"
	MimeTypeAppTypeScript  MimeType = "application/x-typescript"
	MimeTypeTextCSV        MimeType = "text/csv"
	MimeTypeTextMarkdown   MimeType = "text/markdown"
	MimeTypeTextPython     MimeType = "text/x-python"
	MimeTypeAppPython      MimeType = "application/x-python-code"
	MimeTypeAppJSON        MimeType = "application/json"
	MimeTypeTextXML        MimeType = "text/xml"
	MimeTypeAppRTF         MimeType = "application/rtf"
	MimeTypeTextRTF        MimeType = "text/rtf"
	MimeTypeAppPDF         MimeType = "application/pdf"
)

var supportedMimeTypes = map[MimeType]struct{}{
	MimeTypeImagePNG: {}, MimeTypeImageJPEG: {}, MimeTypeImageWEBP: {}, MimeTypeImageHEIC: {}, MimeTypeImageHEIF: {},
	MimeTypeVideoMP4: {}, MimeTypeVideoMPEG: {}, MimeTypeVideoMOV: {}, MimeTypeVideoAVI: {}, MimeTypeVideoFLV: {},
	MimeTypeVideoMPG: {}, MimeTypeVideoWEBM: {}, MimeTypeVideoWMV: {}, MimeTypeVideo3GPP: {},
	MimeTypeAudioWAV: {}, MimeTypeAudioMP3: {}, MimeTypeAudioAIFF: {}, MimeTypeAudioAAC: {}, MimeTypeAudioOGG: {}, MimeTypeAudioFLAC: {},
	MimeTypeTextPlain: {}, MimeTypeTextHTML: {}, MimeTypeTextCSS: {}, MimeTypeTextJavaScript: {}, MimeTypeAppJavaScript: {},
	MimeTypeTextTypeScript: {}, MimeTypeAppTypeScript: {}, MimeTypeTextCSV: {}, MimeTypeTextMarkdown: {},
	MimeTypeTextPython: {}, MimeTypeAppPython: {}, MimeTypeAppJSON: {}, MimeTypeTextXML: {},
	MimeTypeAppRTF: {}, MimeTypeTextRTF: {}, MimeTypeAppPDF: {},
}

// mimeAliases maps registered or sniffed names onto the spelling the API lists.
var mimeAliases = map[string]MimeType{
	"audio/mpeg":             MimeTypeAudioMP3,
	"audio/x-mpeg":           MimeTypeAudioMP3,
	"audio/x-wav":            MimeTypeAudioWAV,
	"audio/wave":             MimeTypeAudioWAV,
	"audio/vnd.wave":         MimeTypeAudioWAV,
	"audio/x-aiff":           MimeTypeAudioAIFF,
	"audio/x-flac":           MimeTypeAudioFLAC,
	"video/quicktime":        MimeTypeVideoMOV,
	"video/x-msvideo":        MimeTypeVideoAVI,
	"video/x-ms-wmv":         MimeTypeVideoWMV,
	"video/x-ms-asf":         MimeTypeVideoWMV,
	"application/javascript": MimeTypeTextJavaScript,
	"application/xml":        MimeTypeTextXML,
}

// canonical normalizes s and resolves aliases.
func canonical(s string) MimeType {
	normalized := BaseMediaType(s)
	if alias, ok := mimeAliases[normalized]; ok {
		return alias
	}
	return MimeType(normalized)
}

// ParseMimeType normalizes s (lower case, parameters stripped, aliases such as
// audio/mpeg resolved) and checks it against the supported list.
func ParseMimeType(s string) (MimeType, error) {
	mt := canonical(s)
	normalized := string(mt)
	if normalized == "" {
		return "", NewInvalidRequestError("mime type is required", nil)
	}
	if _, ok := supportedMimeTypes[mt]; !ok {
		return "", NewInvalidRequestError("unsupported mime type: "+normalized, nil)
	}
	return mt, nil
}

// IsSupported reports whether the generation API accepts this media type.
func (m MimeType) IsSupported() bool {
	_, ok := supportedMimeTypes[canonical(string(m))]
	return ok
}

// BaseMediaType lower-cases a media type and drops any parameters
// ("text/plain; charset=utf-8" -> "text/plain").
func BaseMediaType(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(s); err == nil {
		return mt
	}
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(strings.TrimSpace(s))
}
