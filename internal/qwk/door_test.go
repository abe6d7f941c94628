package qwk

import (
	"reflect"
	"testing"

	"github.com/stlalpha/qwk/internal/validation"
)

const sampleDoor = "DOOR = Vision3QWK\r\n" +
	"VERSION = 1.2\r\n" +
	"SYSTEM = Vision/3\r\n" +
	"CONTROLNAME = VQWK\r\n" +
	"MIXEDCASE = YES\r\n" +
	"FIDOTAG = NO\r\n" +
	"CONTROLTYPE = ADD\r\n" +
	"CONTROLTYPE = DROP\r\n" +
	"CONTROLTYPE = TELEPORT\r\n" +
	"RECEIPT\r\n"

func TestParseDoor(t *testing.T) {
	ctx := validation.NewContext(validation.Strict)
	d, err := ParseDoor([]byte(sampleDoor), ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ctx.Len() != 0 {
		t.Errorf("unexpected issues: %v", ctx.Issues())
	}
	if d.Door != "Vision3QWK" || d.Version != "1.2" || d.System != "Vision/3" || d.ControlName != "VQWK" {
		t.Errorf("identity = %+v", d)
	}
	if !d.MixedCase || d.FidoTag || !d.Receipt {
		t.Errorf("flags: mixedcase=%v fidotag=%v receipt=%v", d.MixedCase, d.FidoTag, d.Receipt)
	}
	want := []Capability{CapAdd, CapDrop, CapUnknown}
	if !reflect.DeepEqual(d.Capabilities, want) {
		t.Errorf("Capabilities = %v, want %v", d.Capabilities, want)
	}
	if !reflect.DeepEqual(d.UnknownControlTypes, []string{"TELEPORT"}) {
		t.Errorf("UnknownControlTypes = %q", d.UnknownControlTypes)
	}
	if !d.Has(CapDrop) || d.Has(CapReset) {
		t.Error("Has lookup wrong")
	}
}

func TestParseDoorCaseAndSpacing(t *testing.T) {
	d, err := ParseDoor([]byte("door=Lower\nControlType=resetall\n"), validation.NewContext(validation.Strict))
	if err != nil {
		t.Fatal(err)
	}
	if d.Door != "Lower" || !d.Has(CapResetAll) {
		t.Errorf("got %+v", d)
	}
}

func TestParseDoorDuplicateKey(t *testing.T) {
	ctx := validation.NewContext(validation.Strict)
	d, err := ParseDoor([]byte("DOOR = First\r\nDOOR = Second\r\n"), ctx)
	if err != nil {
		t.Fatal(err)
	}
	if d.Door != "First" {
		t.Errorf("Door = %q, want First", d.Door)
	}
	r := validation.FromContext(ctx)
	if len(r.Warnings()) != 1 || len(r.Errors()) != 0 {
		t.Errorf("issues = %v", ctx.Issues())
	}
}

func TestParseDoorUnknownKey(t *testing.T) {
	ctx := validation.NewContext(validation.Strict)
	if _, err := ParseDoor([]byte("COLOR = BLUE\r\nSHINY\r\n"), ctx); err != nil {
		t.Fatal(err)
	}
	r := validation.FromContext(ctx)
	if len(r.Infos()) != 2 || !r.IsValid() {
		t.Errorf("issues = %v", ctx.Issues())
	}
}

func TestParseDoorBadFlag(t *testing.T) {
	data := []byte("MIXEDCASE = MAYBE\r\n")
	if _, err := ParseDoor(data, validation.NewContext(validation.Strict)); err == nil {
		t.Error("Strict accepted a bad flag")
	}
	ctx := validation.NewContext(validation.Lenient)
	d, err := ParseDoor(data, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if d.MixedCase || !ctx.HasErrors() {
		t.Errorf("MixedCase = %v, errors = %v", d.MixedCase, ctx.HasErrors())
	}
}

func TestDoorMarshalRoundTrip(t *testing.T) {
	d, err := ParseDoor([]byte(sampleDoor), validation.NewContext(validation.Strict))
	if err != nil {
		t.Fatal(err)
	}
	if got := string(d.Marshal()); got != sampleDoor {
		t.Errorf("Marshal:\n%s\nwant\n%s", got, sampleDoor)
	}
}
