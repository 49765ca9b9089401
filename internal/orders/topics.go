package orders

const (
	TopicOrderPlaced        = "order.placed"
	TopicOrderCancelled     = "order.cancelled"
	TopicOrderStatusChanged = "order.status.changed"
	TopicStockRestoreFailed = "order.stock.restore_failed"
)

// Partition key = correlation id (the order id once one exists), so every
// event of one order keeps its order.
func PartitionKey(correlationID string) []byte { return []byte(correlationID) }
