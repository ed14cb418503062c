package protobuf

import (
	"context"
	"slices"
	"strings"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/zoobzio/serde"
	serdetest "github.com/zoobzio/serde/testing"
)

// contactDescriptor builds
//
//	message Contact {
//	  oneof channel { string email = 1; string phone = 2; }
//	  Address home = 3;
//	  repeated Address past = 4;
//	  message Address { string street = 1; }
//	}
func contactDescriptor(t *testing.T) protoreflect.MessageDescriptor {
	t.Helper()
	optional := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
	str := descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum()
	msg := descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("example/contact.proto"),
		Package: proto.String("example"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("Contact"),
			Field: []*descriptorpb.FieldDescriptorProto{
				{Name: proto.String("email"), Number: proto.Int32(1), Label: optional, Type: str, OneofIndex: proto.Int32(0), JsonName: proto.String("email")},
				{Name: proto.String("phone"), Number: proto.Int32(2), Label: optional, Type: str, OneofIndex: proto.Int32(0), JsonName: proto.String("phone")},
				{Name: proto.String("home"), Number: proto.Int32(3), Label: optional, Type: msg, TypeName: proto.String(".example.Contact.Address"), JsonName: proto.String("home")},
				{Name: proto.String("past"), Number: proto.Int32(4), Label: descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(), Type: msg, TypeName: proto.String(".example.Contact.Address"), JsonName: proto.String("past")},
			},
			OneofDecl: []*descriptorpb.OneofDescriptorProto{{Name: proto.String("channel")}},
			NestedType: []*descriptorpb.DescriptorProto{{
				Name: proto.String("Address"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{Name: proto.String("street"), Number: proto.Int32(1), Label: optional, Type: str, JsonName: proto.String("street")},
				},
			}},
		}},
	}
	fd, err := protodesc.NewFile(fdp, nil)
	if err != nil {
		t.Fatalf("protodesc.NewFile() error: %v", err)
	}
	return fd.Messages().ByName("Contact")
}

func transform(t *testing.T, md protoreflect.MessageDescriptor, msg proto.Message, tags map[string][]string) []string {
	t.Helper()
	var seen []string
	target := &serde.Schema{Metadata: &serde.Metadata{Tags: tags}}
	rc := serde.NewRuleContext(serde.Request{Target: target}, serde.Rule{Name: "r", Tags: []string{"PII"}}, Bind(md))
	_, err := rc.TransformFields(context.Background(),
		func(_ context.Context, _ *serde.RuleContext, f *serde.FieldContext, v any) (any, error) {
			seen = append(seen, f.FullName)
			return strings.ToUpper(v.(string)), nil
		}, msg)
	if err != nil {
		t.Fatalf("TransformFields() error: %v", err)
	}
	return seen
}

func TestAdapter_ScalarsListsMaps(t *testing.T) {
	md := serdetest.PersonDescriptor(t)
	m := serdetest.NewPerson(md, "alice", "123-45-6789", "a@x", "b@x")
	labels := m.Mutable(md.Fields().ByName("labels")).Map()
	labels.Set(protoreflect.ValueOfString("tier").MapKey(), protoreflect.ValueOfString("gold"))

	seen := transform(t, md, m, map[string][]string{
		"example.Person.ssn":    {"PII"},
		"example.Person.emails": {"PII"},
		"example.Person.labels": {"PII"},
	})

	get := func(name string) protoreflect.Value { return m.Get(md.Fields().ByName(protoreflect.Name(name))) }
	if get("name").String() != "alice" {
		t.Errorf("untagged name changed: %q", get("name").String())
	}
	emails := get("emails").List()
	if emails.Get(0).String() != "A@X" || emails.Get(1).String() != "B@X" {
		t.Errorf("emails not rewritten in place")
	}
	if v := get("labels").Map().Get(protoreflect.ValueOfString("tier").MapKey()); v.String() != "GOLD" {
		t.Errorf("labels[tier] = %q", v.String())
	}
	if !slices.Contains(seen, "example.Person.ssn") {
		t.Errorf("full names should be protobuf full names: %v", seen)
	}
}

func TestAdapter_OneofAndNestedMessages(t *testing.T) {
	md := contactDescriptor(t)
	addr := md.Messages().ByName("Address")
	street := addr.Fields().ByName("street")

	m := dynamicpb.NewMessage(md)
	m.Set(md.Fields().ByName("email"), protoreflect.ValueOfString("a@x"))
	home := dynamicpb.NewMessage(addr)
	home.Set(street, protoreflect.ValueOfString("main"))
	m.Set(md.Fields().ByName("home"), protoreflect.ValueOfMessage(home))
	past := m.Mutable(md.Fields().ByName("past")).List()
	old := dynamicpb.NewMessage(addr)
	old.Set(street, protoreflect.ValueOfString("elm"))
	past.Append(protoreflect.ValueOfMessage(old))

	seen := transform(t, md, m, map[string][]string{
		"example.Contact.email":          {"PII"},
		"example.Contact.phone":          {"PII"},
		"example.Contact.Address.street": {"PII"},
	})

	if got := m.Get(md.Fields().ByName("email")).String(); got != "A@X" {
		t.Errorf("email = %q", got)
	}
	if m.Has(md.Fields().ByName("phone")) {
		t.Error("unset oneof member should stay unset")
	}
	if got := m.Get(md.Fields().ByName("home")).Message().Get(street).String(); got != "MAIN" {
		t.Errorf("home.street = %q", got)
	}
	if got := m.Get(md.Fields().ByName("past")).List().Get(0).Message().Get(street).String(); got != "ELM" {
		t.Errorf("past[0].street = %q", got)
	}
	if slices.Contains(seen, "example.Contact.phone") {
		t.Errorf("only the populated oneof member should be visited: %v", seen)
	}
}

func TestAdapter_WrongMessageType(t *testing.T) {
	person := serdetest.PersonDescriptor(t)
	contact := contactDescriptor(t)
	rc := serde.NewRuleContext(serde.Request{Target: &serde.Schema{}}, serde.Rule{Tags: []string{"PII"}}, Bind(contact))

	_, err := rc.TransformFields(context.Background(),
		func(_ context.Context, _ *serde.RuleContext, _ *serde.FieldContext, v any) (any, error) {
			return v, nil
		},
		dynamicpb.NewMessage(person))
	if err == nil {
		t.Error("walking a message with another type's descriptor should fail")
	}
}

func TestKindType(t *testing.T) {
	tests := []struct {
		kind protoreflect.Kind
		want serde.Type
	}{
		{protoreflect.StringKind, serde.TypeString},
		{protoreflect.BytesKind, serde.TypeBytes},
		{protoreflect.Int32Kind, serde.TypeInt},
		{protoreflect.Uint64Kind, serde.TypeLong},
		{protoreflect.FloatKind, serde.TypeFloat},
		{protoreflect.DoubleKind, serde.TypeDouble},
		{protoreflect.BoolKind, serde.TypeBoolean},
		{protoreflect.EnumKind, serde.TypeEnum},
		{protoreflect.MessageKind, serde.TypeRecord},
	}
	for _, tt := range tests {
		if got := kindType(tt.kind); got != tt.want {
			t.Errorf("kindType(%v) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}
