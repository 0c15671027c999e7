/*
   Copyright 2020 Joseph Cumines

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package term

import "testing"

func TestSubtypeLattice(t *testing.T) {
	tbl := NewTable()
	animal := tbl.DeclareType("animal")
	dog := tbl.DeclareType("dog", animal)
	cat := tbl.DeclareType("cat", animal)

	if !tbl.Subtype(dog, animal) {
		t.Errorf("dog should be a subtype of animal")
	}
	if !tbl.Subtype(dog, dog) {
		t.Errorf("a type is a subtype of itself")
	}
	if tbl.Subtype(dog, cat) {
		t.Errorf("dog should not be a subtype of cat")
	}
	if !tbl.Subtype(animal, Object) {
		t.Errorf("every declared type should be a subtype of Object")
	}
}

func TestMostSpecific(t *testing.T) {
	tbl := NewTable()
	animal := tbl.DeclareType("animal")
	dog := tbl.DeclareType("dog", animal)
	cat := tbl.DeclareType("cat", animal)

	if join, ok := tbl.MostSpecific(dog, animal); !ok || join != animal {
		t.Errorf("MostSpecific(dog, animal) = %v, %v; want animal, true", join, ok)
	}
	if join, ok := tbl.MostSpecific(dog, dog); !ok || join != dog {
		t.Errorf("MostSpecific(dog, dog) = %v, %v; want dog, true", join, ok)
	}
	if _, ok := tbl.MostSpecific(dog, cat); ok {
		t.Errorf("dog and cat should be incompatible")
	}
}

func TestEitherUnion(t *testing.T) {
	tbl := NewTable()
	dog := tbl.DeclareType("dog")
	cat := tbl.DeclareType("cat")
	pet := tbl.DeclareEither("pet", dog, cat)
	fish := tbl.DeclareType("fish")

	if !tbl.Subtype(dog, pet) {
		t.Errorf("dog should be a subtype of the either-union pet")
	}
	if !tbl.Subtype(cat, pet) {
		t.Errorf("cat should be a subtype of the either-union pet")
	}
	if tbl.Subtype(fish, pet) {
		t.Errorf("fish should not be a subtype of pet")
	}
}

func TestObjectsCompatibleWith(t *testing.T) {
	tbl := NewTable()
	animal := tbl.DeclareType("animal")
	dog := tbl.DeclareType("dog", animal)
	cat := tbl.DeclareType("cat", animal)

	rex := tbl.DeclareObject("rex", dog)
	felix := tbl.DeclareObject("felix", cat)
	_ = tbl.DeclareObject("unrelated", tbl.DeclareType("rock"))

	got := tbl.ObjectsCompatibleWith(animal)
	want := map[Term]bool{rex: true, felix: true}
	if len(got) != len(want) {
		t.Fatalf("ObjectsCompatibleWith(animal) = %v, want 2 objects", got)
	}
	for _, o := range got {
		if !want[o] {
			t.Errorf("unexpected object %v in animal-compatible set", o)
		}
	}
}

func TestFreshVariablesAreUnique(t *testing.T) {
	tbl := NewTable()
	ty := tbl.DeclareType("widget")
	v1 := tbl.FreshVariable(ty)
	v2 := tbl.FreshVariable(ty)
	if v1 == v2 {
		t.Fatalf("FreshVariable returned the same term twice: %v", v1)
	}
	if !v1.IsVariable() || !v2.IsVariable() {
		t.Errorf("fresh variables must report IsVariable() == true")
	}
	if tbl.TypeOf(v1) != ty || tbl.TypeOf(v2) != ty {
		t.Errorf("fresh variables should keep their declared type")
	}
}

func TestPredicateInterningAndStaticFlag(t *testing.T) {
	tbl := NewTable()
	p1 := tbl.Predicate("on")
	p2 := tbl.Predicate("on")
	if p1 != p2 {
		t.Fatalf("Predicate should intern by name, got distinct pointers")
	}
	if !p1.Static {
		t.Errorf("a freshly declared predicate should default to Static")
	}
	tbl.MarkDynamic(map[string]bool{"on": true}, nil)
	if p1.Static {
		t.Errorf("MarkDynamic should clear Static for predicates mentioned in an effect")
	}
}

func TestReservedTotalTimeFunction(t *testing.T) {
	tbl := NewTable()
	if tbl.LookupFunction("total-time") == nil {
		t.Errorf("NewTable must reserve the total-time function (spec §6)")
	}
}

func TestObjectTermNotVariable(t *testing.T) {
	tbl := NewTable()
	o := tbl.DeclareObject("a", Object)
	if o.IsVariable() {
		t.Errorf("a declared object must not report IsVariable()")
	}
	if o.ObjectID() != 0 {
		t.Errorf("first declared object should have ObjectID 0, got %d", o.ObjectID())
	}
}
