package cvm

import (
	"errors"
	"math"

	"github.com/andreabergia/rjvm/classfile"
)

// invoke is the single entry point for calling any Method, native or not.
// fullArgs holds one Value per argument:
// for instance methods, fullArgs[0] is the receiver, followed by one Value
// per declared parameter (wide parameters still contribute exactly one
// Value here — see placeArgs).
func (e *Engine) invoke(method *Method, fullArgs []Value) (Value, error) {
	if method.IsNative() {
		return e.Natives.Invoke(e, method, fullArgs)
	}
	if method.IsAbstract() || method.Raw.Code == nil {
		return nil, abortf("invoked method with no body: %s.%s%s", method.Owner.Name, method.Name, method.Descriptor)
	}

	frame := NewFrame(method)
	placeArgs(frame, method, fullArgs)

	if err := e.CallStack.Push(frame); err != nil {
		return nil, e.raiseVMError(err)
	}
	defer e.CallStack.Pop()

	return e.execFrame(frame)
}

func placeArgs(frame *Frame, method *Method, fullArgs []Value) {
	slot := 0
	argi := 0
	if !method.IsStatic() {
		frame.locals[0] = fullArgs[0]
		slot = 1
		argi = 1
	}
	for _, t := range method.Parsed.ParameterTypes {
		frame.locals[slot] = fullArgs[argi]
		if classfile.IsWide(t) {
			slot += 2
		} else {
			slot++
		}
		argi++
	}
}

// popArgs pops descriptor's parameters off frame's operand stack in
// declaration order (they were pushed left-to-right, so the last one
// pushed — the rightmost argument — is on top) and, unless isStatic,
// the receiver beneath them.
func popArgs(frame *Frame, desc *classfile.MethodDescriptor, isStatic bool) []Value {
	n := len(desc.ParameterTypes)
	if !isStatic {
		n++
	}
	args := make([]Value, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = frame.Pop()
	}
	return args
}

// execFrame runs frame's bytecode to completion: a normal return (its
// Value, possibly nil for void), or an error — either a *ThrownException
// that unwound past every handler in this frame, or an *InternalAbort.
func (e *Engine) execFrame(frame *Frame) (Value, error) {
	frame.state = FrameRunning
	code := frame.code()

	for frame.pc < len(code) {
		instrPC := frame.pc
		opcode := frame.readU1()
		result, done, err := e.step(frame, opcode)
		if err != nil {
			// A resolution or linkage failure surfaced as a *vmError is
			// turned into a guest exception so this frame's handlers see it.
			err = e.raiseVMError(err)
			var thrown *ThrownException
			if errors.As(err, &thrown) {
				frame.state = FrameUnwinding
				if handlerPC, ok := e.unwind(frame, instrPC, thrown); ok {
					frame.pc = handlerPC
					frame.stack = frame.stack[:0]
					frame.Push(thrown.Value)
					frame.state = FrameRunning
					continue
				}
			}
			frame.state = FrameDead
			return nil, err
		}
		if done {
			frame.state = FrameDead
			return result, nil
		}
	}
	return nil, abortf("%s.%s%s: fell off the end of the method body", frame.Class.Name, frame.Method.Name, frame.Method.Descriptor)
}

// step executes exactly one instruction, returning (returnValue, done,
// err). done is true only for the six *return opcodes.
func (e *Engine) step(frame *Frame, opcode byte) (Value, bool, error) {
	switch opcode {
	case opNop:

	case opAconstNull:
		frame.Push(Null)
	case opIconstM1, opIconst0, opIconst1, opIconst2, opIconst3, opIconst4, opIconst5:
		frame.Push(Int(int32(opcode) - int32(opIconst0)))
	case opLconst0, opLconst1:
		frame.Push(Long(int64(opcode) - int64(opLconst0)))
	case opFconst0, opFconst1, opFconst2:
		frame.Push(Float(float32(opcode) - float32(opFconst0)))
	case opDconst0, opDconst1:
		frame.Push(Double(float64(opcode) - float64(opDconst0)))

	case opBipush:
		frame.Push(Int(int32(frame.readI1())))
	case opSipush:
		frame.Push(Int(int32(frame.readI2())))

	case opLdc:
		return nil, false, e.execLdc(frame, uint16(frame.readU1()))
	case opLdcW:
		return nil, false, e.execLdc(frame, frame.readU2())
	case opLdc2W:
		return nil, false, e.execLdc2(frame, frame.readU2())

	case opIload, opFload, opAload:
		frame.Push(frame.Local(int(frame.readU1())))
	case opLload, opDload:
		frame.Push(frame.Local(int(frame.readU1())))
	case opIload0, opFload0, opAload0:
		frame.Push(frame.Local(0))
	case opIload1, opFload1, opAload1:
		frame.Push(frame.Local(1))
	case opIload2, opFload2, opAload2:
		frame.Push(frame.Local(2))
	case opIload3, opFload3, opAload3:
		frame.Push(frame.Local(3))
	case opLload0, opDload0:
		frame.Push(frame.Local(0))
	case opLload1, opDload1:
		frame.Push(frame.Local(1))
	case opLload2, opDload2:
		frame.Push(frame.Local(2))
	case opLload3, opDload3:
		frame.Push(frame.Local(3))

	case opIstore, opFstore, opAstore, opLstore, opDstore:
		frame.SetLocal(int(frame.readU1()), frame.Pop())
	case opIstore0, opFstore0, opAstore0, opLstore0, opDstore0:
		frame.SetLocal(0, frame.Pop())
	case opIstore1, opFstore1, opAstore1, opLstore1, opDstore1:
		frame.SetLocal(1, frame.Pop())
	case opIstore2, opFstore2, opAstore2, opLstore2, opDstore2:
		frame.SetLocal(2, frame.Pop())
	case opIstore3, opFstore3, opAstore3, opLstore3, opDstore3:
		frame.SetLocal(3, frame.Pop())

	case opIaload, opLaload, opFaload, opDaload, opAaload, opBaload, opCaload, opSaload:
		return nil, false, e.execArrayLoad(frame)
	case opIastore, opLastore, opFastore, opDastore, opAastore, opBastore, opCastore, opSastore:
		return nil, false, e.execArrayStore(frame)

	case opPop:
		frame.Pop()
	case opPop2:
		frame.Pop()
		frame.Pop()
	case opDup:
		v := frame.Peek()
		frame.Push(v)
	case opDupX1:
		v1 := frame.Pop()
		v2 := frame.Pop()
		frame.Push(v1)
		frame.Push(v2)
		frame.Push(v1)
	case opDupX2:
		v1 := frame.Pop()
		v2 := frame.Pop()
		v3 := frame.Pop()
		frame.Push(v1)
		frame.Push(v3)
		frame.Push(v2)
		frame.Push(v1)
	case opDup2:
		v1 := frame.Pop()
		v2 := frame.Pop()
		frame.Push(v2)
		frame.Push(v1)
		frame.Push(v2)
		frame.Push(v1)
	case opDup2X1:
		v1 := frame.Pop()
		v2 := frame.Pop()
		v3 := frame.Pop()
		frame.Push(v2)
		frame.Push(v1)
		frame.Push(v3)
		frame.Push(v2)
		frame.Push(v1)
	case opDup2X2:
		v1 := frame.Pop()
		v2 := frame.Pop()
		v3 := frame.Pop()
		v4 := frame.Pop()
		frame.Push(v2)
		frame.Push(v1)
		frame.Push(v4)
		frame.Push(v3)
		frame.Push(v2)
		frame.Push(v1)
	case opSwap:
		v1 := frame.Pop()
		v2 := frame.Pop()
		frame.Push(v1)
		frame.Push(v2)

	case opIadd, opIsub, opImul, opIdiv, opIrem, opIand, opIor, opIxor, opIshl, opIshr, opIushr:
		return nil, false, e.execIntBinOp(frame, opcode)
	case opLadd, opLsub, opLmul, opLdiv, opLrem, opLand, opLor, opLxor, opLshl, opLshr, opLushr:
		return nil, false, e.execLongBinOp(frame, opcode)
	case opFadd, opFsub, opFmul, opFdiv, opFrem:
		execFloatBinOp(frame, opcode)
	case opDadd, opDsub, opDmul, opDdiv, opDrem:
		execDoubleBinOp(frame, opcode)

	case opIneg:
		frame.Push(-frame.Pop().(Int))
	case opLneg:
		frame.Push(-frame.Pop().(Long))
	case opFneg:
		frame.Push(-frame.Pop().(Float))
	case opDneg:
		frame.Push(-frame.Pop().(Double))

	case opIinc:
		index := int(frame.readU1())
		delta := int32(frame.readI1())
		frame.SetLocal(index, frame.Local(index).(Int)+Int(delta))

	case opI2l:
		frame.Push(Long(frame.Pop().(Int)))
	case opI2f:
		frame.Push(Float(frame.Pop().(Int)))
	case opI2d:
		frame.Push(Double(frame.Pop().(Int)))
	case opL2i:
		frame.Push(Int(int32(frame.Pop().(Long))))
	case opL2f:
		frame.Push(Float(frame.Pop().(Long)))
	case opL2d:
		frame.Push(Double(frame.Pop().(Long)))
	case opF2i:
		frame.Push(Int(int32(frame.Pop().(Float))))
	case opF2l:
		frame.Push(Long(int64(frame.Pop().(Float))))
	case opF2d:
		frame.Push(Double(frame.Pop().(Float)))
	case opD2i:
		frame.Push(Int(int32(frame.Pop().(Double))))
	case opD2l:
		frame.Push(Long(int64(frame.Pop().(Double))))
	case opD2f:
		frame.Push(Float(frame.Pop().(Double)))
	case opI2b:
		frame.Push(Int(int8(frame.Pop().(Int))))
	case opI2c:
		frame.Push(Int(uint16(frame.Pop().(Int))))
	case opI2s:
		frame.Push(Int(int16(frame.Pop().(Int))))

	case opLcmp:
		b := frame.Pop().(Long)
		a := frame.Pop().(Long)
		frame.Push(Int(cmp3(int64(a), int64(b))))
	case opFcmpl, opFcmpg:
		b := frame.Pop().(Float)
		a := frame.Pop().(Float)
		frame.Push(Int(fcmp(float64(a), float64(b), opcode == opFcmpg)))
	case opDcmpl, opDcmpg:
		b := frame.Pop().(Double)
		a := frame.Pop().(Double)
		frame.Push(Int(fcmp(float64(a), float64(b), opcode == opDcmpg)))

	case opIfeq, opIfne, opIflt, opIfge, opIfgt, opIfle:
		return nil, false, execIfZero(frame, opcode)
	case opIfIcmpeq, opIfIcmpne, opIfIcmplt, opIfIcmpge, opIfIcmpgt, opIfIcmple:
		return nil, false, execIfIcmp(frame, opcode)
	case opIfAcmpeq, opIfAcmpne:
		return nil, false, execIfAcmp(frame, opcode)
	case opIfnull, opIfnonnull:
		return nil, false, execIfNull(frame, opcode)

	case opGoto:
		offset := int(frame.readI2())
		frame.pc = frame.pc - 3 + offset
	case opGotoW:
		offset := int(frame.readI4())
		frame.pc = frame.pc - 5 + offset
	case opJsr, opRet:
		return nil, false, abortf("jsr/ret is unsupported (javac has not emitted it since Java 6)")

	case opTableswitch:
		execTableswitch(frame)
	case opLookupswitch:
		execLookupswitch(frame)

	case opIreturn, opFreturn, opAreturn:
		return frame.Pop(), true, nil
	case opLreturn, opDreturn:
		return frame.Pop(), true, nil
	case opReturn:
		return nil, true, nil

	case opGetstatic:
		return nil, false, e.execGetstatic(frame)
	case opPutstatic:
		return nil, false, e.execPutstatic(frame)
	case opGetfield:
		return nil, false, e.execGetfield(frame)
	case opPutfield:
		return nil, false, e.execPutfield(frame)

	case opInvokevirtual:
		return nil, false, e.execInvokeVirtual(frame, false)
	case opInvokeinterface:
		return nil, false, e.execInvokeInterface(frame)
	case opInvokespecial:
		return nil, false, e.execInvokeSpecial(frame)
	case opInvokestatic:
		return nil, false, e.execInvokeStatic(frame)

	case opNew:
		return nil, false, e.execNew(frame)
	case opNewarray:
		return nil, false, e.execNewarray(frame)
	case opAnewarray:
		return nil, false, e.execAnewarray(frame)
	case opArraylength:
		ref := frame.Pop().(Reference)
		if ref.IsNull() {
			return nil, false, e.raiseVMError(newVMError(NullPointerException, "arraylength"))
		}
		frame.Push(Int(int32(ref.Ptr.ArrayLength())))

	case opAthrow:
		return nil, false, e.athrow(frame)

	case opCheckcast:
		return nil, false, e.execCheckcast(frame)
	case opInstanceof:
		return nil, false, e.execInstanceof(frame)

	case opMonitorenter, opMonitorexit:
		frame.Pop() // spec §5: single-threaded, monitors are no-ops

	case opWide:
		return nil, false, e.execWide(frame)

	case opMultianewarray:
		return nil, false, abortf("multianewarray unsupported")

	default:
		return nil, false, abortf("unimplemented opcode 0x%02x at %s.%s%s:%d", opcode, frame.Class.Name, frame.Method.Name, frame.Method.Descriptor, frame.pc-1)
	}
	return nil, false, nil
}

func cmp3(a, b int64) int32 {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// fcmp implements fcmpl/fcmpg/dcmpl/dcmpg: NaN makes the comparison
// "unordered", resolved to -1 for the *l variants and +1 for the *g
// variants (JVM spec §6.5.fcmp<op>).
func fcmp(a, b float64, nanIsGreater bool) int32 {
	if math.IsNaN(a) || math.IsNaN(b) {
		if nanIsGreater {
			return 1
		}
		return -1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (e *Engine) execIntBinOp(frame *Frame, opcode byte) error {
	b := frame.Pop().(Int)
	a := frame.Pop().(Int)
	switch opcode {
	case opIadd:
		frame.Push(a + b)
	case opIsub:
		frame.Push(a - b)
	case opImul:
		frame.Push(a * b)
	case opIdiv:
		if b == 0 {
			return e.raiseVMError(newVMError(ArithmeticException, "/ by zero"))
		}
		frame.Push(a / b)
	case opIrem:
		if b == 0 {
			return e.raiseVMError(newVMError(ArithmeticException, "/ by zero"))
		}
		frame.Push(a % b)
	case opIand:
		frame.Push(a & b)
	case opIor:
		frame.Push(a | b)
	case opIxor:
		frame.Push(a ^ b)
	case opIshl:
		frame.Push(a << (uint32(b) & 0x1f))
	case opIshr:
		frame.Push(a >> (uint32(b) & 0x1f))
	case opIushr:
		frame.Push(Int(uint32(a) >> (uint32(b) & 0x1f)))
	}
	return nil
}

func (e *Engine) execLongBinOp(frame *Frame, opcode byte) error {
	var shiftAmount Int
	var b Long
	if opcode == opLshl || opcode == opLshr || opcode == opLushr {
		shiftAmount = frame.Pop().(Int)
	} else {
		b = frame.Pop().(Long)
	}
	a := frame.Pop().(Long)
	switch opcode {
	case opLadd:
		frame.Push(a + b)
	case opLsub:
		frame.Push(a - b)
	case opLmul:
		frame.Push(a * b)
	case opLdiv:
		if b == 0 {
			return e.raiseVMError(newVMError(ArithmeticException, "/ by zero"))
		}
		frame.Push(a / b)
	case opLrem:
		if b == 0 {
			return e.raiseVMError(newVMError(ArithmeticException, "/ by zero"))
		}
		frame.Push(a % b)
	case opLand:
		frame.Push(a & b)
	case opLor:
		frame.Push(a | b)
	case opLxor:
		frame.Push(a ^ b)
	case opLshl:
		frame.Push(a << (uint32(shiftAmount) & 0x3f))
	case opLshr:
		frame.Push(a >> (uint32(shiftAmount) & 0x3f))
	case opLushr:
		frame.Push(Long(uint64(a) >> (uint32(shiftAmount) & 0x3f)))
	}
	return nil
}

func execFloatBinOp(frame *Frame, opcode byte) {
	b := frame.Pop().(Float)
	a := frame.Pop().(Float)
	switch opcode {
	case opFadd:
		frame.Push(a + b)
	case opFsub:
		frame.Push(a - b)
	case opFmul:
		frame.Push(a * b)
	case opFdiv:
		frame.Push(a / b)
	case opFrem:
		frame.Push(Float(math.Mod(float64(a), float64(b))))
	}
}

func execDoubleBinOp(frame *Frame, opcode byte) {
	b := frame.Pop().(Double)
	a := frame.Pop().(Double)
	switch opcode {
	case opDadd:
		frame.Push(a + b)
	case opDsub:
		frame.Push(a - b)
	case opDmul:
		frame.Push(a * b)
	case opDdiv:
		frame.Push(a / b)
	case opDrem:
		frame.Push(Double(math.Mod(float64(a), float64(b))))
	}
}

func execIfZero(frame *Frame, opcode byte) error {
	offset := int(frame.readI2())
	v := int32(frame.Pop().(Int))
	taken := false
	switch opcode {
	case opIfeq:
		taken = v == 0
	case opIfne:
		taken = v != 0
	case opIflt:
		taken = v < 0
	case opIfge:
		taken = v >= 0
	case opIfgt:
		taken = v > 0
	case opIfle:
		taken = v <= 0
	}
	if taken {
		frame.pc = frame.pc - 3 + offset
	}
	return nil
}

func execIfIcmp(frame *Frame, opcode byte) error {
	offset := int(frame.readI2())
	b := int32(frame.Pop().(Int))
	a := int32(frame.Pop().(Int))
	taken := false
	switch opcode {
	case opIfIcmpeq:
		taken = a == b
	case opIfIcmpne:
		taken = a != b
	case opIfIcmplt:
		taken = a < b
	case opIfIcmpge:
		taken = a >= b
	case opIfIcmpgt:
		taken = a > b
	case opIfIcmple:
		taken = a <= b
	}
	if taken {
		frame.pc = frame.pc - 3 + offset
	}
	return nil
}

func execIfAcmp(frame *Frame, opcode byte) error {
	offset := int(frame.readI2())
	b := frame.Pop().(Reference)
	a := frame.Pop().(Reference)
	taken := a.Ptr == b.Ptr
	if opcode == opIfAcmpne {
		taken = !taken
	}
	if taken {
		frame.pc = frame.pc - 3 + offset
	}
	return nil
}

func execIfNull(frame *Frame, opcode byte) error {
	offset := int(frame.readI2())
	r := frame.Pop().(Reference)
	taken := r.IsNull()
	if opcode == opIfnonnull {
		taken = !taken
	}
	if taken {
		frame.pc = frame.pc - 3 + offset
	}
	return nil
}

// execTableswitch and execLookupswitch pad to a 4-byte-aligned boundary
// measured from the start of the enclosing method, per JVM spec §6.5.
func padToAlign4(pc int) int {
	rem := pc % 4
	if rem == 0 {
		return 0
	}
	return 4 - rem
}

func execTableswitch(frame *Frame) {
	opPC := frame.pc - 1
	frame.pc += padToAlign4(frame.pc)
	def := int(frame.readI4())
	low := frame.readI4()
	high := frame.readI4()
	key := int32(frame.Pop().(Int))
	if key < low || key > high {
		frame.pc = opPC + def
		return
	}
	offsetIndex := key - low
	frame.pc += int(offsetIndex) * 4
	target := int(frame.readI4())
	frame.pc = opPC + target
}

func execLookupswitch(frame *Frame) {
	opPC := frame.pc - 1
	frame.pc += padToAlign4(frame.pc)
	def := int(frame.readI4())
	npairs := frame.readI4()
	key := int32(frame.Pop().(Int))
	for i := int32(0); i < npairs; i++ {
		match := frame.readI4()
		offset := int(frame.readI4())
		if match == key {
			frame.pc = opPC + offset
			return
		}
	}
	frame.pc = opPC + def
}
