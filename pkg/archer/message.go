package archer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

const ActionGetDetailFields = "getDetailFields"

// Message is a request sent by the detail block UI through the host.
type Message struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// DetailFieldsReply answers a getDetailFields message.
type DetailFieldsReply struct {
	DetailFields []DetailField `json:"detailFields"`
}

// OnMessage dispatches a UI message.
func (i *Integration) OnMessage(ctx context.Context, msg Message, opts Options) (interface{}, error) {
	switch msg.Action {
	case ActionGetDetailFields:
		contentID := gjson.GetBytes(msg.Data, "ContentId").Int()
		if contentID == 0 {
			return nil, newDetailFieldsError(fmt.Errorf("%w: message has no ContentId", ErrInvalidEntity))
		}
		fields, err := i.GetDetailFields(ctx, contentID, opts)
		if err != nil {
			return nil, err
		}
		return DetailFieldsReply{DetailFields: fields}, nil
	default:
		return nil, fmt.Errorf("unknown message action %q", msg.Action)
	}
}
