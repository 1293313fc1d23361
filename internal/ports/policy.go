package ports

import "time"

type Policy struct {
	MaxQueueLen     int `yaml:"max_queue_len"`
	RejectBufferLen int `yaml:"reject_buffer_len"`

	OnQueueFull  string        `yaml:"on_queue_full"` // "block", "drop"
	BlockTimeout time.Duration `yaml:"block_timeout"`
}
