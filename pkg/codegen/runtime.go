package codegen

import "fmt"

// runtimeTrailer is the fixed runtime appended after the user's code. All
// printing goes through a buffer in .bss that is flushed with one write
// syscall; exit and the default tail drain it before terminating.
//
// Register contract: check_and_add_to_buffer takes rsi = source pointer and
// rcx = byte count, and preserves neither. print_int and print_int_h take
// the value in rsi and build the digits in scratch space above rsp, which
// survives the nested call because everything below rsp belongs to the
// callee.
func runtimeTrailer(bufferSize int) string {
	return fmt.Sprintf(`initialize_buffer:
    mov qword [buffer_used], 0
    ret

check_and_add_to_buffer:
    mov rax, [buffer_used]
    add rax, rcx
    cmp rax, %d
    jle add_to_buffer
    push rsi
    push rcx
    call flush_buffer
    pop rcx
    pop rsi

add_to_buffer:
    lea rdi, [print_buffer]
    add rdi, [buffer_used]
    add [buffer_used], rcx
    rep movsb
    ret

flush_buffer:
    mov rax, 1
    mov rdi, 1
    lea rsi, [print_buffer]
    mov rdx, [buffer_used]
    syscall
    mov qword [buffer_used], 0
    ret

print_newline:
    lea rsi, [newline]
    mov rcx, 1
    call check_and_add_to_buffer
    ret

print_chars:
    call flush_buffer
    ret

print_int_h:
    mov rax, rsi
    sub rsp, 24
    lea rdi, [rsp + 24]
    xor r8, r8
    mov r10, 16
.next_digit:
    xor rdx, rdx
    div r10
    cmp rdx, 10
    jl .decimal
    add rdx, 87
    jmp .store
.decimal:
    add rdx, 48
.store:
    dec rdi
    mov byte [rdi], dl
    inc r8
    test rax, rax
    jnz .next_digit
    dec rdi
    mov byte [rdi], 120
    inc r8
    dec rdi
    mov byte [rdi], 48
    inc r8
    mov rsi, rdi
    mov rcx, r8
    call check_and_add_to_buffer
    add rsp, 24
    ret

print_int:
    mov rax, rsi
    sub rsp, 40
    lea rdi, [rsp + 40]
    xor r8, r8
    mov r10, 10
    xor r11, r11
    cmp rax, 0
    jge .convert
    mov r11, 1
    neg rax
.convert:
    xor rdx, rdx
    div r10
    add rdx, 48
    dec rdi
    mov byte [rdi], dl
    inc r8
    test rax, rax
    jnz .convert
    test r11, r11
    jz .emit
    dec rdi
    mov byte [rdi], 45
    inc r8
.emit:
    mov rsi, rdi
    mov rcx, r8
    call check_and_add_to_buffer
    add rsp, 40
    ret
`, bufferSize)
}
