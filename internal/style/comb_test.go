package style

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComb(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "orders by property group",
			in: `.card {
  color: red;
  display: block;
  position: relative;
  margin: 0;
}`,
			want: `.card {
  position: relative;
  display: block;
  margin: 0;
  color: red;
}`,
		},
		{
			name: "prefixed before unprefixed and unknown last",
			in: `.btn {
  zz-custom: 1;
  user-select: none;
  -webkit-user-select: none;
  cursor: pointer;
}`,
			want: `.btn {
  cursor: pointer;
  -webkit-user-select: none;
  user-select: none;
  zz-custom: 1;
}`,
		},
		{
			name: "custom properties lead in original order",
			in: `:root {
  color: black;
  --b: 2;
  --a: 1;
}`,
			want: `:root {
  --b: 2;
  --a: 1;
  color: black;
}`,
		},
		{
			name: "nested blocks sorted independently",
			in: `@media (max-width: 600px) {
  .a:hover,
  .b {
    width: 1px;
    top: 0;
  }
}`,
			want: `@media (max-width: 600px) {
  .a:hover,
  .b {
    top: 0;
    width: 1px;
  }
}`,
		},
		{
			name: "comments split runs",
			in: `.a {
  width: 1px;
  /* keep */
  position: absolute;
  display: none;
}`,
			want: `.a {
  width: 1px;
  /* keep */
  position: absolute;
  display: none;
}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Comb(tt.in))
		})
	}
}

func TestCombIsIdempotent(t *testing.T) {
	in := `.x {
  color: red;
  -moz-appearance: none;
  appearance: none;
  z-index: 2;
}
`
	once := Comb(in)
	assert.Equal(t, once, Comb(once))
}
