package util

// 报告中显示的时间，精确到分钟
const TimeFormat = "2006-01-02 15:04"

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	MimeTextPlain = "text/plain; charset=utf-8"
	MimeDocx      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeMP3       = "audio/mpeg"
)

// 截断标记
const TruncationMarker = "\n\n...[truncated]..."

var (
	ChatUploadExtensions       = []string{".txt", ".md", ".csv", ".json"}
	EvaluationUploadExtensions = []string{".pdf", ".docx", ".txt", ".md"}
	AudioUploadExtensions      = []string{".mp3", ".wav", ".webm", ".m4a", ".ogg"}
)

// 上传大小上限
const (
	MaxContextUploadBytes = 10 << 20
	MaxAudioUploadBytes   = 25 << 20
)
