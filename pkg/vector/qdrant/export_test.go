package qdrant

var (
	PointID     = pointID
	ToPayload   = toPayload
	FromPayload = fromPayload
)
