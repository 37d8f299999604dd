package ast

type (
	TreeID    uint32
	PayloadID uint32
)

const (
	NoTreeID    TreeID    = 0
	NoPayloadID PayloadID = 0
)

func (id TreeID) IsValid() bool    { return id != NoTreeID }
func (id PayloadID) IsValid() bool { return id != NoPayloadID }
