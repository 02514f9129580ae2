package atm

import (
	"fmt"

	"github.com/cottand/qinfer/inference/lattice"
	"github.com/cottand/qinfer/inference/model"
)

// Names of slot markers. Any other annotation name is a real qualifier
const (
	VarAnnot        = "VarAnnot"
	RefineVarAnnot  = "RefineVarAnnot"
	CombVarAnnot    = "CombVarAnnot"
	ExistVarAnnot   = "ExistVarAnnot"
	unqualifiedName = "Unqualified"
)

// Unqualified is the placeholder of positions nothing has annotated yet
var Unqualified = Annotation{Name: unqualifiedName}

// Annotation is an opaque qualifier marker. A slot marker embeds the id of its slot,
// while a real qualifier has Slot == model.NoSlot
type Annotation struct {
	Name string
	Slot model.SlotID
}

// Real returns the annotation of a real qualifier
func Real(q lattice.Qualifier) Annotation {
	return Annotation{Name: string(q)}
}

func (a Annotation) IsSlotMarker() bool {
	return a.Slot.IsValid()
}

// Qualifier is the real qualifier a carries, if it is not a slot marker
func (a Annotation) Qualifier() (lattice.Qualifier, bool) {
	if a.IsSlotMarker() || a == Unqualified || a.Name == "" {
		return "", false
	}
	return lattice.Qualifier(a.Name), true
}

func (a Annotation) String() string {
	if a.IsSlotMarker() {
		return fmt.Sprintf("@%s(%d)", a.Name, a.Slot)
	}
	return "@" + a.Name
}
