package metadata

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/idmgr/internal/result"
)

type widget struct {
	Name    string
	Enabled bool
	Score   float64
	Count   int
	Secret  string
}

type gadget struct{}

func widgetProps() PropertySet {
	return PropertySet{
		Property("name", StringField(func(w *widget) *string { return &w.Name }), Required()),
		Property("enabled", BoolField(func(w *widget) *bool { return &w.Enabled })),
		Property("score", NumberField(func(w *widget) *float64 { return &w.Score })),
		Property("count", IntField(func(w *widget) *int { return &w.Count })),
		Property("secret", StringField(func(w *widget) *string { return &w.Secret }), WithDataType(Password)),
	}
}

func strp(s string) *string { return &s }

func TestProperty_Defaults(t *testing.T) {
	props := widgetProps()

	assert.Equal(t, "name", props[0].DisplayName)
	assert.Equal(t, String, props[0].DataType)
	assert.True(t, props[0].Required)
	assert.Equal(t, Boolean, props[1].DataType)
	assert.Equal(t, Number, props[2].DataType)
	assert.Equal(t, Number, props[3].DataType)
	assert.Equal(t, Password, props[4].DataType)

	conv := Conventional("gravatar", WithDisplayName("Gravatar Url"), WithDataType(URL))
	assert.True(t, conv.IsConventional())
	assert.Equal(t, "Gravatar Url", conv.DisplayName)
	assert.Equal(t, URL, conv.DataType)
}

func TestFieldBinding_RoundTrip(t *testing.T) {
	ctx := context.Background()
	props := widgetProps()

	tests := []struct {
		typ   string
		value string
	}{
		{"name", "alice"},
		{"enabled", "true"},
		{"enabled", "false"},
		{"score", "3.5"},
		{"count", "12"},
	}

	for _, tt := range tests {
		t.Run(tt.typ+"="+tt.value, func(t *testing.T) {
			w := &widget{}
			p := props.Find(tt.typ)
			require.NotNil(t, p)

			res, err := p.Set(ctx, w, tt.value)
			require.NoError(t, err)
			require.True(t, res.IsSuccess())

			got, err := p.Get(ctx, w)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.value, *got)
		})
	}
}

func TestFieldBinding_WhitespaceClears(t *testing.T) {
	ctx := context.Background()
	props := widgetProps()
	w := &widget{Name: "x", Enabled: true, Score: 1.5, Count: 3}

	for _, typ := range []string{"name", "enabled", "score", "count"} {
		res, err := props.Find(typ).Set(ctx, w, "   ")
		require.NoError(t, err)
		assert.True(t, res.IsSuccess(), typ)
	}
	assert.Equal(t, widget{}, *w)

	got, err := props.Find("name").Get(ctx, w)
	require.NoError(t, err)
	assert.Nil(t, got, "empty string reads as nil")
}

func TestFieldBinding_ConversionFailureLeavesEntity(t *testing.T) {
	ctx := context.Background()
	props := widgetProps()
	w := &widget{Enabled: true, Score: 2, Count: 7}

	for _, tc := range []struct{ typ, value string }{
		{"enabled", "yes"},
		{"score", "abc"},
		{"count", "1.5"},
	} {
		res, err := props.Find(tc.typ).Set(ctx, w, tc.value)
		require.NoError(t, err)
		assert.Equal(t, []string{MsgConversionFailed}, res.Errors, tc.typ)
	}
	assert.Equal(t, widget{Enabled: true, Score: 2, Count: 7}, *w)
}

func TestFieldBinding_WrongInstance(t *testing.T) {
	ctx := context.Background()
	p := widgetProps().Find("name")

	_, err := p.Get(ctx, &gadget{})
	assert.ErrorIs(t, err, ErrInvalidInstance)

	_, err = p.Set(ctx, widget{}, "x")
	assert.ErrorIs(t, err, ErrInvalidInstance)

	_, err = p.Set(ctx, (*widget)(nil), "x")
	assert.ErrorIs(t, err, ErrInvalidInstance)
}

func TestGet_PasswordIsNeverExposed(t *testing.T) {
	p := widgetProps().Find("secret")
	w := &widget{Secret: "hunter2"}

	got, err := p.Get(context.Background(), w)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestConventional_NoBinding(t *testing.T) {
	p := Conventional("role.admin", WithDataType(Boolean))

	_, err := p.Get(context.Background(), &widget{})
	assert.ErrorIs(t, err, ErrNoBinding)

	_, err = p.Set(context.Background(), &widget{}, "true")
	assert.ErrorIs(t, err, ErrNoBinding)
}

func TestFromFunctions(t *testing.T) {
	ctx := context.Background()
	var setCalls []string
	p := Property("label", FromFunctions(
		func(w *widget) string { return w.Name },
		func(w *widget, v string) result.Result {
			setCalls = append(setCalls, v)
			if v == "reserved" {
				return result.Failure("reserved name")
			}
			w.Name = v
			return result.Success()
		},
	))

	w := &widget{}
	res, err := p.Set(ctx, w, "bob")
	require.NoError(t, err)
	assert.True(t, res.IsSuccess())
	assert.Equal(t, "bob", w.Name)

	res, err = p.Set(ctx, w, "reserved")
	require.NoError(t, err)
	assert.Equal(t, []string{"reserved name"}, res.Errors)
	assert.Equal(t, "bob", w.Name)

	res, err = p.Set(ctx, w, " ")
	require.NoError(t, err)
	assert.True(t, res.IsSuccess())
	assert.Equal(t, []string{"bob", "reserved", ""}, setCalls, "whitespace sets the zero value")
}

func TestFromFunctions_ConversionFailureSkipsSetter(t *testing.T) {
	called := false
	p := Property("enabled", FromFunctions(
		func(w *widget) bool { return w.Enabled },
		func(w *widget, v bool) result.Result { called = true; return result.Success() },
	))
	assert.Equal(t, Boolean, p.DataType)

	res, err := p.Set(context.Background(), &widget{}, "maybe")
	require.NoError(t, err)
	assert.Equal(t, []string{MsgConversionFailed}, res.Errors)
	assert.False(t, called)
}

func TestFromAsyncFunctions(t *testing.T) {
	boom := errors.New("store unavailable")
	p := Property("count", FromAsyncFunctions(
		func(ctx context.Context, w *widget) (int, error) {
			if w.Name == "broken" {
				return 0, boom
			}
			return w.Count, nil
		},
		func(ctx context.Context, w *widget, v int) (result.Result, error) {
			if err := ctx.Err(); err != nil {
				return result.Result{}, err
			}
			w.Count = v
			return result.Success(), nil
		},
	))

	w := &widget{}
	res, err := p.Set(context.Background(), w, "5")
	require.NoError(t, err)
	assert.True(t, res.IsSuccess())

	got, err := p.Get(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, "5", *got)

	_, err = p.Get(context.Background(), &widget{Name: "broken"})
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Set(ctx, w, "6")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConvert(t *testing.T) {
	b := Conventional("b", WithDataType(Boolean))
	n := Conventional("n", WithDataType(Number))
	s := Conventional("s")

	assert.Nil(t, b.Convert(nil))
	assert.Equal(t, true, b.Convert(strp("True")))
	assert.Equal(t, "nope", b.Convert(strp("nope")))
	assert.Equal(t, 2.5, n.Convert(strp("2.5")))
	assert.Equal(t, "x", n.Convert(strp("x")))
	assert.Equal(t, "42", s.Convert(strp("42")))
}

func TestParseBool(t *testing.T) {
	for in, want := range map[string]bool{"true": true, "TRUE": true, " False ": false} {
		got, ok := ParseBool(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "1", "yes", "t"} {
		_, ok := ParseBool(in)
		assert.False(t, ok, in)
	}
}

func TestEffectiveCreateProperties(t *testing.T) {
	username := Conventional("username", Required())
	m := EntityMetadata{
		CreateProperties: PropertySet{username},
		UpdateProperties: PropertySet{
			Conventional("username", Required()),
			Conventional("password", Required(), WithDataType(Password)),
			Conventional("email", WithDataType(Email)),
			Conventional("name", Required()),
		},
	}

	eff := m.EffectiveCreateProperties()
	assert.Equal(t, []string{"username", "password", "name"}, eff.Types())
	assert.Same(t, username, eff[0], "create property wins over update property with the same type")
}

func TestMetadataValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		md := &Metadata{Users: UserMetadata{EntityMetadata: EntityMetadata{UpdateProperties: widgetProps()}}}
		require.NoError(t, md.Validate())
		require.NoError(t, md.Validate(), "validation is repeatable")
	})

	t.Run("duplicate display names are aggregated", func(t *testing.T) {
		md := &Metadata{Users: UserMetadata{EntityMetadata: EntityMetadata{CreateProperties: PropertySet{
			Conventional("a", WithDisplayName("A")),
			Conventional("b", WithDisplayName("A")),
			Conventional("c", WithDisplayName("C")),
			Conventional("d", WithDisplayName("C")),
			Conventional("e", WithDisplayName("C")),
		}}}}

		err := md.Validate()
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		require.Len(t, cfgErr.Problems, 1)
		assert.Equal(t, "duplicate user CreateProperties names registered: A, C", cfgErr.Problems[0])
	})

	t.Run("duplicate types", func(t *testing.T) {
		md := &Metadata{Roles: RoleMetadata{EntityMetadata: EntityMetadata{UpdateProperties: PropertySet{
			Conventional("x", WithDisplayName("X1")),
			Conventional("x", WithDisplayName("X2")),
		}}}}
		assert.ErrorContains(t, md.Validate(), "duplicate role UpdateProperties types registered: x")
	})

	t.Run("malformed descriptors", func(t *testing.T) {
		md := &Metadata{Users: UserMetadata{EntityMetadata: EntityMetadata{UpdateProperties: PropertySet{
			Conventional(" ", WithDisplayName("Blank")),
			Conventional("k", WithDisplayName("")),
			Conventional("z", WithDataType("color")),
			Property("f", StringField[widget](nil)),
			Property("g", FromFunctions[widget, string](nil, nil)),
			nil,
		}}}}

		var cfgErr *ConfigError
		require.ErrorAs(t, md.Validate(), &cfgErr)
		assert.Len(t, cfgErr.Problems, 6)
	})
}

func TestProvider_BuildsOnce(t *testing.T) {
	var calls atomic.Int32
	p := NewProvider(func() (*Metadata, error) {
		calls.Add(1)
		return &Metadata{}, nil
	})

	var wg sync.WaitGroup
	results := make([]*Metadata, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			md, err := p.Get()
			assert.NoError(t, err)
			results[i] = md
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, md := range results {
		assert.Same(t, results[0], md)
	}
}

func TestProvider_InvalidMetadataIsFatal(t *testing.T) {
	p := Static(&Metadata{Users: UserMetadata{EntityMetadata: EntityMetadata{CreateProperties: PropertySet{
		Conventional("a", WithDisplayName("Same")),
		Conventional("b", WithDisplayName("Same")),
	}}}})

	_, err := p.Get()
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)

	_, again := p.Get()
	assert.Same(t, err, again)
}
