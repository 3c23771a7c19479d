package authstate

import (
	customErrors "chat-ingest/errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncode_TagsBinaryNodes(t *testing.T) {
	req := require.New(t)

	text, err := Encode(Mapping{"noiseKey": Binary{0x00, 0xff, 0x10}})
	req.NoError(err)
	req.JSONEq(`{"noiseKey":{"binary":"AP8Q"}}`, text)
}

func TestDecode_RestoresNestedBinary(t *testing.T) {
	req := require.New(t)
	creds := Mapping{
		"me":             Mapping{"id": String("33600000000:1@s.whatsapp.net"), "name": Null{}},
		"registered":     Bool(true),
		"registrationId": Number("16384"),
		"signedPreKey": Mapping{
			"keyPair":   Mapping{"private": Binary{1, 2, 3}, "public": Binary{4, 5, 6}},
			"signature": Binary{7, 8},
			"keyId":     Number("1"),
		},
		"history": Sequence{Binary{9}, Sequence{Binary{10, 11}, String("plain")}, Number("-2.5e3")},
	}

	text, err := Encode(creds)
	req.NoError(err)
	decoded, err := Decode(text)
	req.NoError(err)
	req.Equal(creds, decoded)
}

func TestEncode_EscapesMappingsShapedLikeTags(t *testing.T) {
	req := require.New(t)
	tricky := Sequence{
		Mapping{"binary": String("AP8Q")},
		Mapping{"$map": Mapping{"binary": String("x")}},
		Mapping{"binary": Binary{1}},
	}

	text, err := Encode(tricky)
	req.NoError(err)
	decoded, err := Decode(text)
	req.NoError(err)
	req.Equal(tricky, decoded)
	_, isBinary := decoded.(Sequence)[0].(Binary)
	req.False(isBinary)
}

func TestDecode_KeepsNumberLiterals(t *testing.T) {
	req := require.New(t)

	decoded, err := Decode(`{"big":123456789012345678901234567890,"f":0.1}`)
	req.NoError(err)
	req.Equal(Number("123456789012345678901234567890"), decoded.(Mapping)["big"])
	req.Equal(Number("0.1"), decoded.(Mapping)["f"])
}

func TestEncode_RejectsInvalidNumber(t *testing.T) {
	_, err := Encode(Mapping{"n": Number("not-a-number")})
	require.Error(t, err)
}

func TestEncode_RejectsValuesThatWouldNotDecodeBack(t *testing.T) {
	cases := map[string]Value{
		"invalid utf-8 string":        String("a\xffb"),
		"nested invalid utf-8 string": Sequence{Mapping{"k": String("\xc3")}},
		"invalid utf-8 key":           Mapping{"k\xfe": Bool(true)},
		"empty number":                Number(""),
		"nested empty number":         Mapping{"registrationId": Number("")},
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)

			_, err := Encode(value)

			req.ErrorIs(err, customErrors.ErrInvalidAuthValue)
		})
	}
}

func TestRoundTrip_UnicodeStrings(t *testing.T) {
	req := require.New(t)
	v := Mapping{"nom d'affichage ✓": String("Zoé 🚀 <b>&</b>"), "": String("")}

	text, err := Encode(v)
	req.NoError(err)
	decoded, err := Decode(text)
	req.NoError(err)
	req.Equal(v, decoded)
}

func TestDecode_Errors(t *testing.T) {
	req := require.New(t)

	_, err := Decode(`{"binary":"***"}`)
	req.Error(err)
	_, err = Decode(`{"a":1} {"b":2}`)
	req.Error(err)
	_, err = Decode(`{`)
	req.Error(err)
}

func TestRoundTrip_RandomTrees(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		tree := randomValue(rnd, 4)
		text, err := Encode(tree)
		require.NoError(t, err)
		decoded, err := Decode(text)
		require.NoError(t, err)
		require.True(t, Equal(tree, decoded), "tree %d did not survive: %s", i, text)
	}
}

func TestGet(t *testing.T) {
	req := require.New(t)
	v := Mapping{"me": Mapping{"id": String("1@s.whatsapp.net")}}

	me, ok := Get(v, "me")
	req.True(ok)
	id, ok := Get(me, "id")
	req.True(ok)
	req.Equal(String("1@s.whatsapp.net"), id)
	_, ok = Get(String("x"), "me")
	req.False(ok)
}

func randomValue(rnd *rand.Rand, depth int) Value {
	kind := rnd.Intn(7)
	if depth == 0 {
		kind = rnd.Intn(5)
	}
	switch kind {
	case 0:
		return Null{}
	case 1:
		return Bool(rnd.Intn(2) == 1)
	case 2:
		numbers := []string{fmt.Sprintf("%d", rnd.Int63()-rnd.Int63()), "0", "-0.5", "6.02e23", "1E-7"}
		return Number(numbers[rnd.Intn(len(numbers))])
	case 3:
		return String(randomText(rnd))
	case 4:
		b := make([]byte, 1+rnd.Intn(64))
		rnd.Read(b)
		return Binary(b)
	case 5:
		seq := make(Sequence, rnd.Intn(4))
		for i := range seq {
			seq[i] = randomValue(rnd, depth-1)
		}
		return seq
	default:
		m := make(Mapping)
		for i := rnd.Intn(4); i > 0; i-- {
			keys := []string{"binary", "$map", "data", fmt.Sprintf("k%d", rnd.Intn(10)), randomText(rnd)}
			m[keys[rnd.Intn(len(keys))]] = randomValue(rnd, depth-1)
		}
		return m
	}
}

// randomText mixes ASCII, multi-byte runes and JSON-escaped characters.
func randomText(rnd *rand.Rand) string {
	alphabet := []rune("az09 \"\\/<>&\n\té€😀\u2028")
	runes := make([]rune, rnd.Intn(12))
	for i := range runes {
		runes[i] = alphabet[rnd.Intn(len(alphabet))]
	}
	return string(runes)
}
