package service

import "github.com/berfenger/sensorist2mqtt/pkg/sensorist"

// KnownIDs records the API ids that were already turned into entities.
// It is owned by one integration instance and is not safe for concurrent
// use.
type KnownIDs struct {
	ids map[sensorist.ID]struct{}
}

func NewKnownIDs() *KnownIDs {
	return &KnownIDs{ids: map[sensorist.ID]struct{}{}}
}

func (k *KnownIDs) Contains(id sensorist.ID) bool {
	_, ok := k.ids[id]
	return ok
}

func (k *KnownIDs) Add(id sensorist.ID) {
	k.ids[id] = struct{}{}
}

func (k *KnownIDs) Len() int {
	return len(k.ids)
}
