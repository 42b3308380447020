package project

import (
	"context"
	"encoding/json"

	"github.com/nerrad567/datalog-core/internal/infrastructure/mqtt"
)

// SlotRegistrar is the slice of the broker responder slots are bound to.
type SlotRegistrar interface {
	Handle(slot string, fn mqtt.Handler) error
}

// Slot argument and reply shapes. Every slot returns via reply; callers may
// be remote, so the shapes are stable JSON.
type (
	sessionArgs struct {
		User     string `json:"user"`
		Password string `json:"password"`
	}
	saveArgs struct {
		Items []SaveItem `json:"items"`
	}
	saveReply struct {
		Items []SaveResult `json:"items"`
	}
	loadArgs struct {
		Domain string    `json:"domain"`
		Items  []LoadRef `json:"items"`
	}
	loadSubsArgs struct {
		Domain  string    `json:"domain"`
		Items   []LoadRef `json:"items"`
		ListTag string    `json:"list_tag"`
	}
	loadReply struct {
		Items []LoadedItem `json:"items"`
	}
	versionArgs struct {
		Domain string   `json:"domain"`
		Items  []string `json:"items"`
	}
	listArgs struct {
		Domain    string   `json:"domain"`
		ItemTypes []string `json:"item_types,omitempty"`
	}
	listReply struct {
		Items []ItemInfo `json:"items"`
	}
	domainsReply struct {
		Domains []string `json:"domains"`
	}
)

// RegisterSlots binds the store's slot surface onto a responder. Sessions
// are keyed by the broker identity of the caller.
func RegisterSlots(reg SlotRegistrar, store *Store) error {
	slots := map[string]mqtt.Handler{
		"slotInitUserSession": func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args sessionArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, err
			}
			return nil, store.BeginSession(mqtt.CallerID(ctx), args.User, args.Password)
		},
		"slotEndUserSession": func(ctx context.Context, _ json.RawMessage) (any, error) {
			store.EndSession(mqtt.CallerID(ctx))
			return nil, nil
		},
		"slotSaveItems": func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args saveArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, err
			}
			results, err := store.SaveItems(ctx, mqtt.CallerID(ctx), args.Items)
			if err != nil {
				return nil, err
			}
			return saveReply{Items: results}, nil
		},
		"slotLoadItems": func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args loadArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, err
			}
			items, err := store.LoadItems(ctx, mqtt.CallerID(ctx), args.Domain, args.Items)
			if err != nil {
				return nil, err
			}
			return loadReply{Items: items}, nil
		},
		"slotLoadItemsAndSubs": func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args loadSubsArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, err
			}
			items, err := store.LoadItemsWithChildren(ctx, mqtt.CallerID(ctx), args.Domain, args.Items, args.ListTag)
			if err != nil {
				return nil, err
			}
			return loadReply{Items: items}, nil
		},
		"slotGetVersionInfo": func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args versionArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, err
			}
			return store.VersionInfo(ctx, mqtt.CallerID(ctx), args.Domain, args.Items)
		},
		"slotListItems": func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args listArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, err
			}
			items, err := store.ListItems(ctx, mqtt.CallerID(ctx), args.Domain, args.ItemTypes)
			if err != nil {
				return nil, err
			}
			return listReply{Items: items}, nil
		},
		"slotListDomains": func(ctx context.Context, _ json.RawMessage) (any, error) {
			domains, err := store.ListDomains(ctx, mqtt.CallerID(ctx))
			if err != nil {
				return nil, err
			}
			return domainsReply{Domains: domains}, nil
		},
	}

	for slot, fn := range slots {
		if err := reg.Handle(slot, fn); err != nil {
			return err
		}
	}
	return nil
}

// RemoteStore implements Remote over the broker's request/reply layer. It
// is the network half of a Connection talking to a store in another
// process.
type RemoteStore struct {
	requester  *mqtt.Requester
	instanceID string
}

// NewRemoteStore creates a remote store client addressing instanceID.
func NewRemoteStore(requester *mqtt.Requester, instanceID string) *RemoteStore {
	return &RemoteStore{requester: requester, instanceID: instanceID}
}

// BeginSession opens the caller's session on the remote store.
func (r *RemoteStore) BeginSession(ctx context.Context, user, password string) error {
	_, err := r.requester.Call(ctx, r.instanceID, "slotInitUserSession", sessionArgs{User: user, Password: password})
	return err
}

// EndSession closes the caller's session on the remote store.
func (r *RemoteStore) EndSession(ctx context.Context) error {
	_, err := r.requester.Call(ctx, r.instanceID, "slotEndUserSession", nil)
	return err
}

// LoadItems implements Remote.
func (r *RemoteStore) LoadItems(ctx context.Context, domain string, refs []LoadRef) ([]LoadedItem, error) {
	raw, err := r.requester.Call(ctx, r.instanceID, "slotLoadItems", loadArgs{Domain: domain, Items: refs})
	if err != nil {
		return nil, err
	}
	var reply loadReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, err
	}
	return reply.Items, nil
}

// SaveItems implements Remote.
func (r *RemoteStore) SaveItems(ctx context.Context, items []SaveItem) ([]SaveResult, error) {
	raw, err := r.requester.Call(ctx, r.instanceID, "slotSaveItems", saveArgs{Items: items})
	if err != nil {
		return nil, err
	}
	var reply saveReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, err
	}
	return reply.Items, nil
}

// ListDomains implements Remote.
func (r *RemoteStore) ListDomains(ctx context.Context) ([]string, error) {
	raw, err := r.requester.Call(ctx, r.instanceID, "slotListDomains", nil)
	if err != nil {
		return nil, err
	}
	var reply domainsReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, err
	}
	return reply.Domains, nil
}

// ListItems implements Remote.
func (r *RemoteStore) ListItems(ctx context.Context, domain string, itemTypes []string) ([]ItemInfo, error) {
	raw, err := r.requester.Call(ctx, r.instanceID, "slotListItems", listArgs{Domain: domain, ItemTypes: itemTypes})
	if err != nil {
		return nil, err
	}
	var reply listReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, err
	}
	return reply.Items, nil
}

var _ Remote = (*RemoteStore)(nil)
