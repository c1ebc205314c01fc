package publish

import (
	"github.com/golang/protobuf/proto"
	"github.com/juju/errors"
)

// message is persistent queue item.
// Binary form: varint(tag) bytes(topic) bytes(payload) varint(retain)
type message struct {
	Topic   string
	Payload []byte
	Retain  bool
}

// denote message purpose in queue bytes form
const (
	qState  byte = 1
	qConfig byte = 2
)

type queueItem struct {
	tag byte
	message
}

func (qi *queueItem) MarshalBinary() ([]byte, error) {
	buf := proto.NewBuffer(make([]byte, 0, 16+len(qi.Topic)+len(qi.Payload)))
	retain := uint64(0)
	if qi.Retain {
		retain = 1
	}
	if err := buf.EncodeVarint(uint64(qi.tag)); err != nil {
		return nil, err
	}
	if err := buf.EncodeStringBytes(qi.Topic); err != nil {
		return nil, err
	}
	if err := buf.EncodeRawBytes(qi.Payload); err != nil {
		return nil, err
	}
	if err := buf.EncodeVarint(retain); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (qi *queueItem) UnmarshalBinary(b []byte) error {
	if len(b) == 0 {
		return errors.NotValidf("queue item empty")
	}
	buf := proto.NewBuffer(b)
	tag, err := buf.DecodeVarint()
	if err != nil {
		return errors.Annotate(err, "tag")
	}
	switch byte(tag) {
	case qState, qConfig:
	default:
		return errors.NotValidf("queue item tag=%d", tag)
	}
	qi.tag = byte(tag)
	if qi.Topic, err = buf.DecodeStringBytes(); err != nil {
		return errors.Annotate(err, "topic")
	}
	if qi.Payload, err = buf.DecodeRawBytes(true); err != nil {
		return errors.Annotate(err, "payload")
	}
	if qi.Payload == nil {
		// empty state value is still a payload, paho must not see nil
		qi.Payload = []byte{}
	}
	retain, err := buf.DecodeVarint()
	if err != nil {
		return errors.Annotate(err, "retain")
	}
	qi.Retain = retain != 0
	return nil
}
