package transcribe

import "strings"

// knownExtensions はWhisper APIに渡せる音声ファイル拡張子。
var knownExtensions = []string{"mp3", "m4a", "wav", "ogg", "flac", "aac", "opus", "webm"}

// contentTypeExtensions はContent-Typeから拡張子への対応表。
var contentTypeExtensions = map[string]string{
	"audio/mpeg":  "mp3",
	"audio/mp3":   "mp3",
	"audio/mp4":   "m4a",
	"audio/x-m4a": "m4a",
	"audio/aac":   "aac",
	"audio/wav":   "wav",
	"audio/x-wav": "wav",
	"audio/ogg":   "ogg",
	"audio/opus":  "opus",
	"audio/flac":  "flac",
	"audio/webm":  "webm",
}

// InferFilename は音声URLとContent-Typeからアップロード用のファイル名を推定する。
// URLの拡張子 → Content-Type → デフォルト(mp3) の順で判定する。
// 拡張子はWhisper API側のフォーマット判定に使用される。
func InferFilename(audioURL, contentType string) string {
	path := strings.ToLower(audioURL)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	for _, ext := range knownExtensions {
		if strings.HasSuffix(path, "."+ext) {
			return "audio." + ext
		}
	}

	ct := strings.ToLower(contentType)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ext, ok := contentTypeExtensions[ct]; ok {
		return "audio." + ext
	}

	return "audio.mp3"
}
