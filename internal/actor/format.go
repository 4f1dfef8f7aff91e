package actor

import (
	"strconv"

	"github.com/octorelay/blesync-engine/internal/domain"
)

func offsetString(o domain.EventOffset) string { return strconv.FormatUint(uint64(o), 10) }

func msString(t domain.TimestampMs) string { return strconv.FormatInt(int64(t), 10) }

func pageSizeString(p domain.PageSize) string { return strconv.FormatUint(uint64(p), 10) }
