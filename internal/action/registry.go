package action

import (
	"encoding/json"
	"fmt"
)

// New constructs a zero-value Action for the given discriminator
// string, ready to have UnmarshalState populate it. This is the
// registry spec.md §9 describes: "Adding a kind means extending the
// sum and registering the discriminator — no runtime reflection
// needed."
func New(kind string) (Action, error) {
	switch kind {
	case "CreateDirectory":
		return &CreateDirectory{}, nil
	case "CreateFile":
		return &CreateFile{}, nil
	case "RemoveDirectory":
		return &RemoveDirectory{}, nil
	case "CreateUser":
		return &CreateUser{}, nil
	case "CreateGroup":
		return &CreateGroup{}, nil
	case "DeleteUser":
		return &DeleteUser{}, nil
	case "DeleteGroup":
		return &DeleteGroup{}, nil
	case "FetchAndUnpackNix":
		return &FetchAndUnpackNix{}, nil
	case "MoveUnpackedNix":
		return &MoveUnpackedNix{}, nil
	case "PlaceNixConfiguration":
		return &PlaceNixConfiguration{}, nil
	case "PlaceChannelConfiguration":
		return &PlaceChannelConfiguration{}, nil
	case "ConfigureShellProfile":
		return &ConfigureShellProfile{}, nil
	case "ConfigureInitService":
		return &ConfigureInitService{}, nil
	case "ConfigureUpstreamInitService":
		return &ConfigureUpstreamInitService{}, nil
	case "ConfigureSelinux":
		return &ConfigureSelinux{}, nil
	case "CreateApfsVolume":
		return &CreateApfsVolume{}, nil
	case "KickstartLaunchctlService":
		return &KickstartLaunchctlService{}, nil
	case "CreateBindMount":
		return &CreateBindMount{}, nil
	case "Composite":
		return &Base{}, nil
	default:
		return nil, fmt.Errorf("unknown action kind %q", kind)
	}
}

type wrappedChild struct {
	Kind  string          `json:"kind"`
	State json.RawMessage `json:"state"`
}

// UnmarshalChildren rehydrates a composite's children array as
// recorded by Base.MarshalState, resolving each child's concrete type
// via New before calling its own UnmarshalState.
func UnmarshalChildren(raw []json.RawMessage) ([]Action, error) {
	children := make([]Action, 0, len(raw))
	for _, r := range raw {
		var wc wrappedChild
		if err := json.Unmarshal(r, &wc); err != nil {
			return nil, err
		}
		child, err := New(wc.Kind)
		if err != nil {
			// Composites carry caller-chosen kind names ("ProvisionNix",
			// ...): a child whose state records a children array is one.
			var cs compositeState
			if json.Unmarshal(wc.State, &cs) != nil || cs.Children == nil {
				return nil, err
			}
			child = &Base{}
		}
		if composite, ok := child.(*Base); ok {
			var inner compositeState
			if err := json.Unmarshal(wc.State, &inner); err != nil {
				return nil, err
			}
			grandchildren, err := UnmarshalChildren(inner.Children)
			if err != nil {
				return nil, err
			}
			if err := composite.UnmarshalState(wc.State); err != nil {
				return nil, err
			}
			composite.SetChildren(grandchildren)
			children = append(children, composite)
			continue
		}
		if err := child.UnmarshalState(wc.State); err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}
