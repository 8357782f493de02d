package util

const (
	DateFormat  = "2006-01-02"
	TimeFormat  = "2006-01-02 15:04:05"
	ClockFormat = "15:04"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 批量发布时的考试类别
const (
	ExamTypeTega   = "tega"
	ExamTypeCourse = "course"
	ExamTypeAll    = "all"
)
