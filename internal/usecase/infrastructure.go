package usecase

import "context"

// MessageProducer публикует события заказов во внешний брокер.
type MessageProducer interface {
	WriteRawMessage(ctx context.Context, req *WriteRawMessageReq) error
}
