package irtext

import (
	"github.com/alecthomas/participle/v2/lexer"
)

type File struct {
	Pos     lexer.Position
	Entries []*Entry `EOL* @@*`
}

type Entry struct {
	Constant *Constant `  @@`
	Function *Function `| @@`
}

type Constant struct {
	Pos   lexer.Position
	Name  string   `".constant" @Ident`
	Size  string   `@Number`
	Align string   `@Number`
	Bytes []string `@Number* EOL*`
}

type Function struct {
	Pos        lexer.Position
	EndPos     lexer.Position
	Name       string       `".decl_function" @Ident`
	Kernel     bool         `[ @"kernel" ] EOL+`
	Statements []*Statement `@@*`
	End        string       `@".end_function" EOL*`
}

type Statement struct {
	Pos  lexer.Position
	Decl *Decl `( @@`
	Insn *Insn `| @@ ) EOL+`
}

type Decl struct {
	Reg    *DeclReg    `  @@`
	Input  *DeclInput  `| @@`
	Output *DeclOutput `| @@`
	Pushed *DeclPushed `| @@`
	Loop   *DeclLoop   `| @@`
}

type DeclReg struct {
	Pos     lexer.Position
	Reg     string `"decl_reg" @Register`
	Family  string `@Ident`
	Uniform bool   `[ @"uniform" ]`
}

type DeclInput struct {
	Pos   lexer.Position
	Kind  string   `"decl_input" @Suffix`
	Reg   string   `@Register`
	Name  string   `@Ident`
	Attrs []string `@Number*`
}

type DeclOutput struct {
	Pos lexer.Position
	Reg string `"decl_output" @Register`
}

type DeclPushed struct {
	Pos    lexer.Position
	Reg    string `"decl_pushed" @Register "@" "{"`
	Arg    string `@Number ","`
	Offset string `@Number "}"`
}

type DeclLoop struct {
	Pos       lexer.Position
	Preheader string   `"decl_loop" @Label`
	Parent    string   `@Number "{"`
	Blocks    []string `@Label* "}" "{"`
	Exits     []string `@Label* "}"`
}

type Insn struct {
	Pos       lexer.Position
	Predicate *Predicate `@@?`
	Opcode    string     `@Ident`
	Modifiers []string   `@Suffix*`
	Operands  []*Operand `@@*`
}

type Predicate struct {
	Inverse bool   `"(" [ @"!" ]`
	Reg     string `@Register ")"`
}

type Operand struct {
	Pos      lexer.Position
	Register *string    `  @Register`
	Target   *string    `| Arrow @Label`
	Label    *string    `| @Label`
	Number   *string    `| @Number`
	Group    *Group     `| @@`
	Attr     *Attribute `| @@`
}

type Group struct {
	Regs []string `"{" @Register* "}"`
}

type Attribute struct {
	Key   string `@Ident ":"`
	Value string `@Number`
}
